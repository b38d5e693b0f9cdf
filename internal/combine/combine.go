package combine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"dcpkit/internal/dcp"
	"dcpkit/internal/fileutil"
	"dcpkit/internal/logging"
)

// Options configures Combine.
type Options struct {
	Issuer         string
	Creator        string
	IssueDate      time.Time
	AnnotationText string
	// Signer, when set, signs the written playlists and packing list.
	Signer dcp.Signer
	// UniqueNameAttempts bounds the numbered suffixes tried per file name.
	// Zero means fileutil.DefaultUniqueAttempts.
	UniqueNameAttempts int
	// LockOutput takes an exclusive lock on OUTPUT.lock for the duration
	// of the merge.
	LockOutput  bool
	DigestCache dcp.DigestCache
	Logger      *slog.Logger
}

// Result summarizes a completed merge.
type Result struct {
	Package   *dcp.Package
	Linked    int
	Copied    int
	Rewritten int
	Skipped   int
}

// ErrOutputLocked is returned when another process holds the output lock.
var ErrOutputLocked = errors.New("output location is locked by another process")

// Combine merges the packages in inputs into a new package at output.
// Nothing is written unless every input opens and all inputs share one
// standard. On failure the output location is left as it was found.
func Combine(ctx context.Context, inputs []string, output string, opts Options) (*Result, error) {
	if len(inputs) == 0 {
		return nil, errors.New("combine: no input packages")
	}
	logger := logging.NewComponentLogger(opts.Logger, "combine")
	attempts := opts.UniqueNameAttempts
	if attempts <= 0 {
		attempts = fileutil.DefaultUniqueAttempts
	}
	output, err := filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("resolve output path: %w", err)
	}

	sources, std, err := openSources(ctx, inputs, opts, logger)
	if err != nil {
		return nil, err
	}
	if err := checkOutput(output); err != nil {
		return nil, err
	}

	parent := filepath.Dir(output)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, fmt.Errorf("create output parent: %w", err)
	}
	if opts.LockOutput {
		lockPath := output + ".lock"
		lock := flock.New(lockPath)
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire output lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%s: %w", output, ErrOutputLocked)
		}
		defer func() {
			if err := lock.Unlock(); err != nil {
				logger.Warn("failed to release output lock", logging.String(logging.FieldPath, lockPath), logging.Error(err))
			}
			_ = os.Remove(lockPath)
		}()
	}

	// Under the lock no other merge into output can be running, so every
	// leftover staging directory is abandoned.
	staleAge := unlockedStaleAge
	if opts.LockOutput {
		staleAge = 0
	}
	CleanStale(ctx, output, staleAge, opts.Logger)

	staging := filepath.Join(parent, stagingPrefix(output)+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if err := os.RemoveAll(staging); err != nil {
			logging.WarnWithContext(logger, "failed to remove staging directory", "staging_cleanup_failed",
				logging.String(logging.FieldPath, staging),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the directory by hand"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
		}
	}()

	m := &merger{
		out:      dcp.New(staging, std, opts.Logger),
		attempts: attempts,
		placed:   make(map[*dcp.Asset]string),
		logger:   logger,
		result:   &Result{},
	}
	for _, src := range sources {
		if err := m.addPackage(ctx, src); err != nil {
			return nil, err
		}
	}
	m.out.ResolveRefs()

	err = m.out.WriteXML(dcp.WriteOptions{
		Issuer:         opts.Issuer,
		Creator:        opts.Creator,
		IssueDate:      opts.IssueDate,
		AnnotationText: opts.AnnotationText,
		Signer:         opts.Signer,
	})
	if err != nil {
		return nil, fmt.Errorf("write combined package: %w", err)
	}

	if err := commit(staging, output); err != nil {
		return nil, err
	}
	committed = true
	m.out.Rebase(output)
	m.result.Package = m.out

	logger.Info("packages combined",
		logging.String(logging.FieldPath, output),
		logging.String(logging.FieldStandard, std.String()),
		logging.Int("inputs", len(inputs)),
		logging.Int("cpls", len(m.out.CPLs())),
		logging.Int("linked", m.result.Linked),
		logging.Int("copied", m.result.Copied),
		logging.Int("rewritten", m.result.Rewritten),
	)
	return m.result, nil
}

func openSources(ctx context.Context, inputs []string, opts Options, logger *slog.Logger) ([]*dcp.Package, dcp.Standard, error) {
	sources := make([]*dcp.Package, 0, len(inputs))
	var std dcp.Standard
	for i, path := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, dcp.StandardUnknown, err
		}
		pkg, err := dcp.Open(path, dcp.ReadOptions{Logger: opts.Logger, DigestCache: opts.DigestCache})
		if err != nil {
			return nil, dcp.StandardUnknown, fmt.Errorf("open %s: %w", path, err)
		}
		if i == 0 {
			std = pkg.Standard()
		} else if pkg.Standard() != std {
			return nil, dcp.StandardUnknown, &StandardMismatchError{Path: path, Want: std, Got: pkg.Standard()}
		}
		logger.Debug("input package opened",
			logging.String(logging.FieldPackage, path),
			logging.String(logging.FieldStandard, pkg.Standard().String()),
		)
		sources = append(sources, pkg)
	}
	return sources, std, nil
}

// checkOutput requires output to be absent or an empty directory.
func checkOutput(output string) error {
	info, err := os.Stat(output)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspect output: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output %s exists and is not a directory", output)
	}
	empty, err := isEmptyDir(output)
	if err != nil {
		return err
	}
	if !empty {
		return fmt.Errorf("output directory %s is not empty", output)
	}
	return nil
}

func isEmptyDir(path string) (bool, error) {
	dir, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("inspect output: %w", err)
	}
	defer dir.Close()
	_, err = dir.Readdirnames(1)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	return false, err
}

func commit(staging, output string) error {
	if err := checkOutput(output); err != nil {
		return err
	}
	if _, err := os.Stat(output); err == nil {
		if err := os.Remove(output); err != nil {
			return fmt.Errorf("replace empty output directory: %w", err)
		}
	}
	if err := os.Rename(staging, output); err != nil {
		return fmt.Errorf("move combined package into place: %w", err)
	}
	return nil
}

type merger struct {
	out      *dcp.Package
	attempts int
	// placed maps each font asset to its destination so fonts shared by
	// several subtitle documents are placed once.
	placed map[*dcp.Asset]string
	logger *slog.Logger
	result *Result
}

func (m *merger) addPackage(ctx context.Context, src *dcp.Package) error {
	for _, cpl := range src.CPLs() {
		if m.skipDuplicate(cpl.Asset(), src) {
			continue
		}
		if err := m.out.AddCPL(cpl); err != nil {
			return err
		}
	}
	for _, a := range src.Assets() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.Kind() == dcp.KindCPL || m.skipDuplicate(a, src) {
			continue
		}
		if err := m.place(a); err != nil {
			return err
		}
		if err := m.out.AddAsset(a); err != nil {
			return err
		}
	}
	return nil
}

// skipDuplicate reports whether an asset with a's id is already in the
// output. Identifiers are unique per asset, so the first copy wins.
func (m *merger) skipDuplicate(a *dcp.Asset, src *dcp.Package) bool {
	if _, exists := m.out.Asset(a.ID()); !exists {
		return false
	}
	m.result.Skipped++
	m.logger.Debug("asset already combined; skipping",
		logging.String(logging.FieldAssetID, a.ID()),
		logging.String(logging.FieldPackage, src.Dir()),
	)
	return true
}

func (m *merger) place(a *dcp.Asset) error {
	if !a.HasFile() {
		return &dcp.MissingFileError{AssetID: a.ID()}
	}
	switch a.Kind() {
	case dcp.KindInteropSubtitle:
		return m.placeSubtitle(a)
	case dcp.KindFont:
		_, err := m.placeFont(a)
		return err
	case dcp.KindEssence:
		return m.placeFile(a)
	case dcp.KindCPL:
		panic("combine: playlists are carried, not placed")
	default:
		panic(fmt.Sprintf("combine: unhandled asset kind %v", a.Kind()))
	}
}

func (m *merger) destination(a *dcp.Asset) (string, error) {
	return fileutil.UniquePath(filepath.Join(m.out.Dir(), filepath.Base(a.File())), m.attempts)
}

func (m *merger) placeFile(a *dcp.Asset) error {
	dest, err := m.destination(a)
	if err != nil {
		return err
	}
	src := a.File()
	copied, err := fileutil.LinkOrCopy(src, dest)
	if err != nil {
		return fmt.Errorf("place %s: %w", src, err)
	}
	if copied {
		m.result.Copied++
		logging.WarnWithContext(m.logger, "hard link crosses devices; copied instead", "cross_device_copy",
			logging.String(logging.FieldAssetID, a.ID()),
			logging.String(logging.FieldPath, dest),
			logging.String(logging.FieldErrorHint, "write the output on the same filesystem as the inputs"),
			logging.String(logging.FieldImpact, "combine uses extra disk space and time"),
		)
	} else {
		m.result.Linked++
	}
	a.Relocate(dest)
	m.logger.Debug("asset placed",
		logging.String(logging.FieldAssetID, a.ID()),
		logging.String(logging.FieldPath, dest),
		logging.Bool("copied", copied),
	)
	return nil
}

func (m *merger) placeFont(font *dcp.Asset) (string, error) {
	if dest, ok := m.placed[font]; ok {
		return dest, nil
	}
	if existing, ok := m.out.Asset(font.ID()); ok && existing != font {
		m.placed[font] = existing.File()
		return existing.File(), nil
	}
	if err := m.placeFile(font); err != nil {
		return "", err
	}
	m.placed[font] = font.File()
	return font.File(), nil
}

// placeSubtitle places the document's fonts, points its LoadFont URIs at
// their new names and writes the document to its own destination.
func (m *merger) placeSubtitle(sub *dcp.Asset) error {
	doc := sub.Subtitle()
	for _, lf := range sub.Fonts() {
		dest, err := m.placeFont(lf.Asset)
		if err != nil {
			return err
		}
		if !doc.SetFontURI(lf.LoadID, filepath.Base(dest)) {
			panic(fmt.Sprintf("combine: subtitle %s links undeclared font %q", sub.ID(), lf.LoadID))
		}
	}
	dest, err := m.destination(sub)
	if err != nil {
		return err
	}
	if err := sub.WriteSubtitle(dest); err != nil {
		return err
	}
	m.result.Rewritten++
	m.logger.Debug("subtitle rewritten",
		logging.String(logging.FieldAssetID, sub.ID()),
		logging.String(logging.FieldPath, dest),
		logging.Int("fonts", len(sub.Fonts())),
	)
	return nil
}
