// Package fileutil holds the file placement primitives used when assembling
// packages: streaming copies, hard links with a cross-device copy fallback,
// and collision-free destination names.
package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// DefaultUniqueAttempts is the number of numbered suffixes UniquePath tries
// before giving up.
const DefaultUniqueAttempts = 10000

// ErrUniqueNameExhausted is matched by UniqueNameExhaustedError.
var ErrUniqueNameExhausted = errors.New("unique name attempts exhausted")

// UniqueNameExhaustedError reports that every numbered variant of Path was taken.
type UniqueNameExhaustedError struct {
	Path     string
	Attempts int
}

func (e *UniqueNameExhaustedError) Error() string {
	return fmt.Sprintf("no free name for %s after %d attempts", e.Path, e.Attempts)
}

func (e *UniqueNameExhaustedError) Is(target error) bool {
	return target == ErrUniqueNameExhausted
}

// link is swapped in tests to simulate cross-device failures.
var link = os.Link

// CopyFile streams src to dst with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// LinkOrCopy hard-links src to dst. When the two paths live on different
// devices the file is copied instead and copied is true. Any other link
// failure is returned unchanged.
func LinkOrCopy(src, dst string) (copied bool, err error) {
	err = link(src, dst)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return false, err
	}

	mode := os.FileMode(0o644)
	if info, statErr := os.Stat(src); statErr == nil {
		mode = info.Mode().Perm()
	}
	if err := CopyFileMode(src, dst, mode); err != nil {
		return true, fmt.Errorf("copy %s across devices: %w", src, err)
	}
	return true, nil
}

// UniquePath returns path when nothing exists there yet. Otherwise it appends
// the first free integer to the stem (name.mxf, name0.mxf, name1.mxf, ...),
// trying at most attempts variants.
func UniquePath(path string, attempts int) (string, error) {
	free, err := isFree(path)
	if err != nil {
		return "", err
	}
	if free {
		return path, nil
	}

	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for i := 0; i < attempts; i++ {
		candidate := filepath.Join(dir, stem+strconv.Itoa(i)+ext)
		free, err := isFree(candidate)
		if err != nil {
			return "", err
		}
		if free {
			return candidate, nil
		}
	}
	return "", &UniqueNameExhaustedError{Path: path, Attempts: attempts}
}

func isFree(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return false, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
