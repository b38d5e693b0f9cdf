package language

import (
	"fmt"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2 string   // ISO 639-1 (2-letter)
	code3 string   // ISO 639-2 primary (3-letter)
	alt3  string   // ISO 639-2 bibliographic alternate (e.g. "fre" vs "fra")
	words []string // English names used by Interop documents
}

var languages = []entry{
	{"en", "eng", "", []string{"english"}},
	{"es", "spa", "", []string{"spanish", "castilian"}},
	{"fr", "fra", "fre", []string{"french"}},
	{"de", "deu", "ger", []string{"german"}},
	{"it", "ita", "", []string{"italian"}},
	{"pt", "por", "", []string{"portuguese"}},
	{"ja", "jpn", "", []string{"japanese"}},
	{"ko", "kor", "", []string{"korean"}},
	{"zh", "zho", "chi", []string{"chinese", "mandarin"}},
	{"ru", "rus", "", []string{"russian"}},
	{"ar", "ara", "", []string{"arabic"}},
	{"hi", "hin", "", []string{"hindi"}},
	{"nl", "nld", "dut", []string{"dutch", "flemish"}},
	{"pl", "pol", "", []string{"polish"}},
	{"sv", "swe", "", []string{"swedish"}},
	{"da", "dan", "", []string{"danish"}},
	{"no", "nor", "", []string{"norwegian"}},
	{"fi", "fin", "", []string{"finnish"}},
	{"cs", "ces", "cze", []string{"czech"}},
	{"tr", "tur", "", []string{"turkish"}},
	{"he", "heb", "", []string{"hebrew"}},
	{"el", "ell", "gre", []string{"greek"}},
	{"hu", "hun", "", []string{"hungarian"}},
}

var byName map[string]*entry

func init() {
	byName = make(map[string]*entry, len(languages)*4)
	for i := range languages {
		e := &languages[i]
		byName[e.code2] = e
		byName[e.code3] = e
		if e.alt3 != "" {
			byName[e.alt3] = e
		}
		for _, w := range e.words {
			byName[w] = e
		}
	}
}

// Normalize returns the canonical BCP 47 tag for a language code, tag or
// English language name.
func Normalize(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", fmt.Errorf("empty language")
	}
	if e, ok := byName[strings.ToLower(trimmed)]; ok {
		return e.code2, nil
	}
	tag, err := xlanguage.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", value, err)
	}
	return tag.String(), nil
}

// NormalizeList normalizes and deduplicates values, keeping first
// occurrences in order.
func NormalizeList(values []string) ([]string, error) {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			continue
		}
		tag, err := Normalize(v)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}

// Same reports whether two language values name the same language. Values
// that do not normalize compare case-insensitively.
func Same(a, b string) bool {
	na, errA := Normalize(a)
	nb, errB := Normalize(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return na == nb
}

// Territory validates an ISO 3166-1 or UN M.49 region code and returns its
// canonical form.
func Territory(value string) (string, error) {
	region, err := xlanguage.ParseRegion(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("invalid territory %q: %w", value, err)
	}
	return region.String(), nil
}

// DisplayName returns an English name for a language value, or the value
// itself when it cannot be parsed.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Unknown"
	}
	tag, err := Normalize(trimmed)
	if err != nil {
		return trimmed
	}
	name := display.English.Tags().Name(xlanguage.Make(tag))
	if name == "" {
		return tag
	}
	return name
}
