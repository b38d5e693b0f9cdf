package combine

import (
	"fmt"

	"dcpkit/internal/dcp"
	"dcpkit/internal/fileutil"
)

// StandardMismatchError reports an input package whose standard differs
// from the first input's.
type StandardMismatchError struct {
	Path string
	Want dcp.Standard
	Got  dcp.Standard
}

func (e *StandardMismatchError) Error() string {
	return fmt.Sprintf("cannot combine %s package %s with %s packages", e.Got, e.Path, e.Want)
}

func (e *StandardMismatchError) Unwrap() error { return dcp.ErrStandardMismatch }

// UniqueNameExhaustedError reports that no free destination name was found
// within the configured attempt bound.
type UniqueNameExhaustedError = fileutil.UniqueNameExhaustedError
