package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"dcpkit/internal/cli"
	"dcpkit/internal/combine"
	"dcpkit/internal/config"
	"dcpkit/internal/logging"
	"dcpkit/internal/signing"
)

type combineFlags struct {
	output         string
	issuer         string
	creator        string
	issueDate      string
	annotationText string
	sign           bool
}

func newRootCommand() *cobra.Command {
	ctx := cli.NewContext()
	var flags combineFlags

	cmd := &cobra.Command{
		Use:           "dcpcombine -o OUTPUT [flags] DCP...",
		Short:         "Merge Digital Cinema Packages into one",
		Version:       config.Version,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.Close()
			return runCombine(cmd, ctx, flags, args)
		},
	}
	cmd.SetVersionTemplate("dcpcombine version {{.Version}}\n")
	ctx.BindFlags(cmd)
	cmd.AddCommand(cli.NewConfigCommand())

	f := cmd.Flags()
	f.StringVarP(&flags.output, "output", "o", "", "Output package directory (must not exist or be empty)")
	f.StringVar(&flags.issuer, "issuer", "", "Issuer written to the packing list (default from config)")
	f.StringVar(&flags.creator, "creator", "", "Creator written to the packing list (default from config)")
	f.StringVar(&flags.issueDate, "issue-date", "", "Issue date, RFC 3339 (default now)")
	f.StringVar(&flags.annotationText, "annotation-text", "", "Annotation text for the packing list and asset map")
	f.BoolVar(&flags.sign, "sign", false, "Sign playlists and packing list with the configured key")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runCombine(cmd *cobra.Command, ctx *cli.Context, flags combineFlags, inputs []string) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	logger, err := ctx.Logger()
	if err != nil {
		return err
	}
	cache, err := ctx.DigestCache()
	if err != nil {
		return err
	}

	opts := combine.Options{
		Issuer:             firstNonEmpty(flags.issuer, cfg.Metadata.Issuer),
		Creator:            firstNonEmpty(flags.creator, cfg.Metadata.Creator),
		AnnotationText:     strings.TrimSpace(flags.annotationText),
		UniqueNameAttempts: cfg.Combine.UniqueNameAttempts,
		LockOutput:         cfg.Combine.LockOutput,
		DigestCache:        cache,
		Logger:             logger,
	}
	if value := strings.TrimSpace(flags.issueDate); value != "" {
		opts.IssueDate, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid --issue-date %q: %w", value, err)
		}
	}
	if flags.sign {
		cred, err := loadOrCreateCredential(cfg, logger)
		if err != nil {
			return err
		}
		opts.Signer = cred
	}

	result, err := combine.Combine(cmd.Context(), inputs, flags.output, opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Combined %d packages into %s\n", len(inputs), result.Package.Dir())
	fmt.Fprintf(out, "  %d CPLs, %d assets (%d linked, %d copied, %d subtitles rewritten)\n",
		len(result.Package.CPLs()), len(result.Package.Assets()), result.Linked, result.Copied, result.Rewritten)
	return nil
}

// loadOrCreateCredential loads the configured signing key, generating and
// saving a new one when the file does not exist yet.
func loadOrCreateCredential(cfg *config.Config, logger *slog.Logger) (*signing.Credential, error) {
	path := cfg.Signing.KeyPath
	if path == "" {
		return nil, errors.New("--sign requires signing.key_path in the configuration (or DCPKIT_SIGNING_KEY)")
	}
	cred, err := signing.Load(path, cfg.Signing.SignerName)
	if err == nil {
		return cred, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cred, err = signing.Generate(cfg.Signing.SignerName, nil)
	if err != nil {
		return nil, err
	}
	if err := cred.Save(path); err != nil {
		return nil, err
	}
	logger.Info("generated signing key", logging.String(logging.FieldPath, path))
	return cred, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
