package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dcpkit/internal/cli"
	"dcpkit/internal/config"
	"dcpkit/internal/dcp"
)

type diffFlags struct {
	bitwise         bool
	keepGoing       bool
	ignoreTexts     bool
	ignoreDates     bool
	ignoreHashes    bool
	ignoreLoadFonts bool
	exportDir       string
}

func newRootCommand() *cobra.Command {
	ctx := cli.NewContext()
	var flags diffFlags

	cmd := &cobra.Command{
		Use:           "dcpdiff [flags] DCP_A DCP_B",
		Short:         "Compare two Digital Cinema Packages",
		Version:       config.Version,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.Close()
			return runDiff(cmd, ctx, flags, args[0], args[1])
		},
	}
	cmd.SetVersionTemplate("dcpdiff version {{.Version}}\n")
	ctx.BindFlags(cmd)
	cmd.AddCommand(cli.NewConfigCommand())

	f := cmd.Flags()
	f.BoolVarP(&flags.bitwise, "bitwise", "b", false, "Compare essence files byte for byte")
	f.BoolP("version", "v", false, "Show version and exit")
	f.BoolVar(&flags.keepGoing, "keep-going", false, "Report every difference instead of stopping at the first")
	f.BoolVar(&flags.ignoreTexts, "ignore-annotation-texts", false, "Ignore CPL and reel annotation texts")
	f.BoolVar(&flags.ignoreDates, "ignore-issue-dates", false, "Ignore issue dates")
	f.BoolVar(&flags.ignoreHashes, "ignore-reel-hashes", false, "Report differing reel hashes as notes rather than errors")
	f.BoolVar(&flags.ignoreLoadFonts, "ignore-load-fonts", false, "Ignore subtitle LoadFont declarations")
	f.StringVar(&flags.exportDir, "export-subtitles", "", "Write differing subtitle documents to this directory")
	return cmd
}

func equalityOptions(cfg *config.Config, flags diffFlags) dcp.EqualityOptions {
	c := cfg.Compare
	opts := dcp.EqualityOptions{
		Mode:                         dcp.ModeStructural,
		MaxMeanPixelError:            c.MaxMeanPixelError,
		MaxStdDevPixelError:          c.MaxStdDevPixelError,
		MaxAudioSampleError:          c.MaxAudioSampleError,
		CPLAnnotationTextsCanDiffer:  c.CPLAnnotationTextsCanDiffer || flags.ignoreTexts,
		ReelAnnotationTextsCanDiffer: c.ReelAnnotationTextsCanDiffer || flags.ignoreTexts,
		ReelHashesCanDiffer:          c.ReelHashesCanDiffer || flags.ignoreHashes,
		IssueDatesCanDiffer:          c.IssueDatesCanDiffer || flags.ignoreDates,
		LoadFontNodesCanDiffer:       c.LoadFontNodesCanDiffer || flags.ignoreLoadFonts,
		KeepGoing:                    c.KeepGoing || flags.keepGoing,
		ExportDifferingSubtitles:     c.ExportDifferingSubtitles,
		ExportDir:                    c.ExportDir,
	}
	if flags.bitwise {
		opts.Mode |= dcp.ModeBitwise
	}
	if dir := strings.TrimSpace(flags.exportDir); dir != "" {
		opts.ExportDifferingSubtitles = true
		opts.ExportDir = dir
	}
	return opts
}

func runDiff(cmd *cobra.Command, ctx *cli.Context, flags diffFlags, pathA, pathB string) error {
	cfg, err := ctx.Config()
	if err != nil {
		return err
	}
	readOpts, err := ctx.ReadOptions()
	if err != nil {
		return err
	}
	a, err := dcp.Open(pathA, readOpts)
	if err != nil {
		return fmt.Errorf("could not read DCP %s: %w", pathA, err)
	}
	b, err := dcp.Open(pathB, readOpts)
	if err != nil {
		return fmt.Errorf("could not read DCP %s: %w", pathB, err)
	}

	notes, err := a.Equal(b, equalityOptions(cfg, flags))
	if err != nil {
		return fmt.Errorf("compare: %w", err)
	}
	if err := printNotes(cmd, notes); err != nil {
		return err
	}
	if dcp.HasErrors(notes) {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func printNotes(cmd *cobra.Command, notes []dcp.Note) error {
	out := cmd.OutOrStdout()
	if !dcp.HasErrors(notes) {
		for _, n := range notes {
			fmt.Fprintf(out, "  %s\n", n.Text)
		}
		fmt.Fprintln(out, "DCPs identical")
		return nil
	}
	if cli.IsTerminal(out) {
		rows := make([][]string, 0, len(notes))
		for _, n := range notes {
			rows = append(rows, []string{n.Type.String(), n.Text})
		}
		_, err := fmt.Fprintln(out, cli.RenderTable([]string{"Type", "Difference"}, rows, nil))
		return err
	}
	for _, n := range notes {
		fmt.Fprintf(out, "  %s\n", n.Text)
	}
	return nil
}
