package dcp

import (
	"fmt"
	"strings"
)

// Standard is the packaging convention a package follows.
type Standard int

const (
	StandardUnknown Standard = iota
	Interop
	SMPTE
)

func (s Standard) String() string {
	switch s {
	case Interop:
		return "interop"
	case SMPTE:
		return "smpte"
	default:
		return "unknown"
	}
}

// ParseStandard maps "interop" or "smpte", case-insensitively.
func ParseStandard(value string) (Standard, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "interop":
		return Interop, nil
	case "smpte":
		return SMPTE, nil
	default:
		return StandardUnknown, fmt.Errorf("unknown standard %q", value)
	}
}

const (
	interopAssetMapNS = "http://www.digicine.com/PROTO-ASDCP-AM-20040311#"
	smpteAssetMapNS   = "http://www.smpte-ra.org/schemas/429-9/2007/AM"
	interopCPLNS      = "http://www.digicine.com/PROTO-ASDCP-CPL-20040511#"
	smpteCPLNS        = "http://www.smpte-ra.org/schemas/429-7/2006/CPL"
	interopPKLNS      = "http://www.digicine.com/PROTO-ASDCP-PKL-20040311#"
	smptePKLNS        = "http://www.smpte-ra.org/schemas/429-8/2007/PKL"
	stereoNS          = "http://www.smpte-ra.org/schemas/429-10/2008/Main-Stereo-Picture-CPL"
	interopCCNS       = "http://www.digicine.com/PROTO-ASDCP-CC-CPL-20070926#"
	smpteCCNS         = "http://www.smpte-ra.org/schemas/429-12/2008/TT"
	smpteMetadataNS   = "http://www.smpte-ra.org/schemas/429-16/2014/CPL-Metadata"
)

func (s Standard) assetMapNS() string {
	if s == SMPTE {
		return smpteAssetMapNS
	}
	return interopAssetMapNS
}

func (s Standard) cplNS() string {
	if s == SMPTE {
		return smpteCPLNS
	}
	return interopCPLNS
}

func (s Standard) pklNS() string {
	if s == SMPTE {
		return smptePKLNS
	}
	return interopPKLNS
}

// AssetMapName is the asset map file name used by the standard.
func (s Standard) AssetMapName() string {
	if s == SMPTE {
		return "ASSETMAP.xml"
	}
	return "ASSETMAP"
}

// VolIndexName is the volume index file name used by the standard.
func (s Standard) VolIndexName() string {
	if s == SMPTE {
		return "VOLINDEX.xml"
	}
	return "VOLINDEX"
}

func standardFromNamespace(ns string) Standard {
	switch ns {
	case interopAssetMapNS, interopCPLNS, interopPKLNS:
		return Interop
	case smpteAssetMapNS, smpteCPLNS, smptePKLNS:
		return SMPTE
	default:
		return StandardUnknown
	}
}
