package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dcpkit/internal/cli"
	"dcpkit/internal/config"
	"dcpkit/internal/dcp"
	"dcpkit/internal/language"
	"dcpkit/internal/signing"
	"dcpkit/internal/subtitles"
)

type infoFlags struct {
	subtitles bool
	at        string
	hashes    bool
}

func newRootCommand() *cobra.Command {
	ctx := cli.NewContext()
	var flags infoFlags

	cmd := &cobra.Command{
		Use:           "dcpinfo [flags] DCP",
		Short:         "Describe a Digital Cinema Package",
		Version:       config.Version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ctx.Close()
			return runInfo(cmd, ctx, flags, args[0])
		},
	}
	cmd.SetVersionTemplate("dcpinfo version {{.Version}}\n")
	ctx.BindFlags(cmd)
	cmd.AddCommand(cli.NewConfigCommand())

	f := cmd.Flags()
	f.BoolVarP(&flags.subtitles, "subtitles", "s", false, "List subtitle events")
	f.StringVar(&flags.at, "at", "", "Only list subtitle events showing at this time (HH:MM:SS:TTT)")
	f.BoolVar(&flags.hashes, "hashes", false, "Verify asset hashes against the packing list and playlists")
	return cmd
}

func runInfo(cmd *cobra.Command, ctx *cli.Context, flags infoFlags, dir string) error {
	var at *subtitles.Time
	if value := strings.TrimSpace(flags.at); value != "" {
		t, err := subtitles.ParseTime(value)
		if err != nil {
			return fmt.Errorf("invalid --at: %w", err)
		}
		at = &t
		flags.subtitles = true
	}

	readOpts, err := ctx.ReadOptions()
	if err != nil {
		return err
	}
	pkg, err := dcp.Open(dir, readOpts)
	if err != nil {
		return fmt.Errorf("could not read DCP %s: %w", dir, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Package %s (%s, %d assets)\n", pkg.Dir(), pkg.Standard(), len(pkg.Assets()))
	for _, cpl := range pkg.CPLs() {
		if err := describeCPL(out, cpl); err != nil {
			return err
		}
		if flags.subtitles {
			describeSubtitles(out, cpl, at)
		}
	}

	if !flags.hashes {
		return nil
	}
	notes, err := pkg.VerifyHashes()
	if err != nil {
		return fmt.Errorf("verify hashes: %w", err)
	}
	if len(notes) == 0 {
		fmt.Fprintln(out, "Hashes OK")
		return nil
	}
	for _, n := range notes {
		fmt.Fprintf(out, "  %s\n", n.Text)
	}
	return &cli.ExitError{Code: 1}
}

func describeCPL(out io.Writer, cpl *dcp.CPL) error {
	fmt.Fprintf(out, "CPL %s: %s (%s)\n", cpl.ID(), cpl.ContentTitleText, cpl.ContentKind)
	if cpl.Issuer != "" {
		fmt.Fprintf(out, "  Issuer: %s\n", cpl.Issuer)
	}
	fmt.Fprintf(out, "  Issued: %s\n", cpl.IssueDate.Format("2006-01-02 15:04:05 -0700"))
	fmt.Fprintf(out, "  Signature: %s\n", signatureStatus(cpl.File()))
	fmt.Fprintf(out, "  Reels: %d, duration %d frames\n", len(cpl.Reels), cpl.Duration())
	if md := cpl.Metadata; md.FullContentTitleText != "" {
		fmt.Fprintf(out, "  Full title: %s\n", md.FullContentTitleText)
	}

	var rows [][]string
	for i, reel := range cpl.Reels {
		for _, e := range reel.Entries {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				e.Kind.String(),
				e.ID,
				entryFile(e),
				strconv.FormatInt(e.ActualDuration(), 10),
				e.EditRate.String(),
			})
		}
	}
	return cli.WriteRows(out,
		[]string{"Reel", "Kind", "Asset", "File", "Duration", "Edit rate"},
		rows,
		[]cli.Alignment{cli.AlignRight, cli.AlignLeft, cli.AlignLeft, cli.AlignLeft, cli.AlignRight, cli.AlignRight},
	)
}

func entryFile(e *dcp.ReelEntry) string {
	if !e.Kind.FileBacked() {
		return "-"
	}
	a, err := e.Ref().Asset()
	if err != nil {
		return "(missing)"
	}
	return filepath.Base(a.File())
}

func signatureStatus(path string) string {
	info, err := signing.VerifyFile(path)
	switch {
	case err == nil:
		return "signed by " + info.Name
	case errors.Is(err, signing.ErrNotSigned):
		return "unsigned"
	default:
		return "INVALID (" + err.Error() + ")"
	}
}

func describeSubtitles(out io.Writer, cpl *dcp.CPL, at *subtitles.Time) {
	for _, reel := range cpl.Reels {
		for _, e := range reel.Entries {
			if e.Kind != dcp.MainSubtitle {
				continue
			}
			a, err := e.Ref().Asset()
			if err != nil || a.Kind() != dcp.KindInteropSubtitle {
				continue
			}
			doc := a.Subtitle()
			fmt.Fprintf(out, "Subtitles %s: %s, reel %d\n", a.ID(), language.DisplayName(doc.Language), doc.ReelNumber)
			var events []subtitles.Event
			if at != nil {
				events = doc.EventsAt(*at)
			} else {
				events = append(events, doc.Events...)
				subtitles.SortEvents(events)
			}
			for _, ev := range events {
				fmt.Fprintf(out, "  %s --> %s  %s  %s\n", ev.In, ev.Out, styleSummary(ev.Style), ev.Text)
			}
		}
	}
}

func styleSummary(s subtitles.Style) string {
	parts := []string{s.Font, strconv.Itoa(s.Size) + "pt"}
	if s.Italic {
		parts = append(parts, "italic")
	}
	if s.Effect != subtitles.EffectNone {
		parts = append(parts, s.Effect.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}
