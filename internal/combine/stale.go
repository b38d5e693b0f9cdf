package combine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dcpkit/internal/logging"
)

// unlockedStaleAge is how old an unlocked merge's staging directory must be
// before it is treated as abandoned.
const unlockedStaleAge = 24 * time.Hour

// CleanStaleResult contains the outcome of a stale staging cleanup.
type CleanStaleResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

func stagingPrefix(output string) string {
	return "." + filepath.Base(output) + ".partial-"
}

// CleanStale removes staging directories left next to output by earlier
// merges that did not finish, when they are older than maxAge.
func CleanStale(ctx context.Context, output string, maxAge time.Duration, logger *slog.Logger) CleanStaleResult {
	result := CleanStaleResult{}
	logger = logging.NewComponentLogger(logger, "combine")

	output = strings.TrimSpace(output)
	if output == "" {
		return result
	}
	parent := filepath.Dir(output)
	prefix := stagingPrefix(output)

	entries, err := os.ReadDir(parent)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, CleanupError{Path: parent, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		dirPath := filepath.Join(parent, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale staging directory", "staging_cleanup_failed",
				logging.String(logging.FieldPath, dirPath),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the output's parent directory"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed stale staging directory",
			logging.String(logging.FieldPath, dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return result
}
