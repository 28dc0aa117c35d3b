package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/caseconf"
	"github.com/aretw0/caseconf/internal/presentation/tui"
	"github.com/aretw0/caseconf/pkg/domain"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// IsInteractive reports whether both stdin and stdout are terminals.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// RunWizard opens a session and walks it to an exported snapshot: the bubbletea wizard
// on a terminal, line prompts otherwise. It returns nil when the user quits early.
func RunWizard(ctx context.Context, eng *caseconf.Engine, opts RunOptions, in io.Reader, out io.Writer) (*domain.Snapshot, error) {
	id, err := eng.Open(ctx, opts.SessionID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = eng.Close(context.WithoutCancel(ctx), id) }()

	interactive := !opts.Plain && IsInteractive()
	palette := tui.PlainPalette()
	renderer := tui.Renderer(tui.PlainRenderer)
	if interactive {
		palette = tui.NewPalette()
		renderer = tui.NewRenderer()
	}
	if !opts.Quiet {
		tui.PrintBanner(out, palette, eng.Name)
		printSystemMessage(out, "Session '%s' active.", id)
	}

	var snap *domain.Snapshot
	if interactive {
		snap, err = tui.Run(ctx, eng.Manager(), id, tui.WithPalette(palette), tui.WithRenderer(renderer))
	} else {
		var s domain.Snapshot
		s, err = tui.NewPrompter(eng.Manager(), id, in, out, tui.WithPalette(palette)).Run(ctx)
		if err == nil {
			snap = &s
		}
	}
	if err != nil {
		if isInterrupted(err) {
			printSystemMessage(out, "Interrupted.")
			return nil, nil
		}
		return nil, err
	}
	if snap == nil {
		printSystemMessage(out, "Quit without exporting.")
	}
	return snap, nil
}

// FormatSnapshot renders a snapshot as sorted KEY = VALUE lines.
func FormatSnapshot(snap domain.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# snapshot %s (%s)\n", snap.ID(), snap.Taken().Format("2006-01-02T15:04:05Z07:00"))
	for _, key := range snap.Keys() {
		v, _ := snap.Get(key)
		fmt.Fprintf(&b, "%s = %s\n", key, v)
	}
	return b.String()
}

// FormatDiff renders changes like a unified diff: "+" added, "-" removed, "~" modified.
func FormatDiff(changes []domain.Change) string {
	if len(changes) == 0 {
		return "no differences\n"
	}
	var b strings.Builder
	for _, c := range changes {
		switch {
		case c.Added():
			fmt.Fprintf(&b, "+ %s = %s\n", c.Key, c.New)
		case c.Removed():
			fmt.Fprintf(&b, "- %s = %s\n", c.Key, c.Old)
		default:
			fmt.Fprintf(&b, "~ %s = %s -> %s\n", c.Key, c.Old, c.New)
		}
	}
	return b.String()
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, tea.ErrProgramKilled) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
