package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/caseconf/pkg/domain"
	"github.com/aretw0/caseconf/pkg/session"
)

// Prompter runs the wizard as plain line prompts, for pipes and dumb terminals.
//
// For each variable of the active stage it prints the legal values and reads one line:
// an empty line keeps the current value, "-" unsets it, "?" lists option help and
// "?VALUE" explains why VALUE is not legal.
type Prompter struct {
	mgr     *session.Manager
	id      string
	in      *bufio.Scanner
	out     io.Writer
	palette Palette
	render  Renderer
}

// NewPrompter creates a Prompter for session id, which must already be open.
func NewPrompter(mgr *session.Manager, id string, in io.Reader, out io.Writer, opts ...Option) *Prompter {
	m := Model{render: PlainRenderer, palette: PlainPalette()}
	for _, opt := range opts {
		opt(&m)
	}
	return &Prompter{
		mgr:     mgr,
		id:      id,
		in:      bufio.NewScanner(in),
		out:     out,
		palette: m.palette,
		render:  m.render,
	}
}

// Run prompts until every stage is complete and returns the exported snapshot.
func (p *Prompter) Run(ctx context.Context) (domain.Snapshot, error) {
	for {
		view, err := p.describe(ctx)
		if err != nil {
			return domain.Snapshot{}, err
		}
		if view.ActiveStage >= len(view.Stages) {
			snap, err := p.mgr.Export(ctx, p.id)
			if err != nil {
				return domain.Snapshot{}, err
			}
			fmt.Fprintln(p.out, p.palette.Legal("Configuration complete."))
			return snap, nil
		}

		st := view.Stages[view.ActiveStage]
		fmt.Fprintf(p.out, "\n%s\n", p.palette.Active(fmt.Sprintf("== %d. %s ==", st.Index+1, st.Title)))
		if st.Description != "" {
			if out, err := p.render(st.Description); err == nil {
				fmt.Fprintln(p.out, strings.TrimRight(out, "\n"))
			}
		}
		for _, key := range st.Vars {
			if err := p.ask(ctx, key); err != nil {
				return domain.Snapshot{}, err
			}
		}

		err = p.mgr.Update(ctx, p.id, func(s *session.Session) error {
			_, err := s.Advance()
			return err
		})
		var inc *domain.StageIncompleteError
		switch {
		case err == nil:
		case errors.As(err, &inc):
			fmt.Fprintln(p.out, p.palette.Error(describeError(err)))
			if len(inc.Blocked) > 0 && inc.Stage > 0 {
				// Earlier choices leave no legal value; redo the previous stage.
				if err := p.reset(ctx, inc.Stage-1); err != nil {
					return domain.Snapshot{}, err
				}
			}
		default:
			return domain.Snapshot{}, err
		}
	}
}

func (p *Prompter) describe(ctx context.Context) (session.View, error) {
	var view session.View
	err := p.mgr.View(ctx, p.id, func(s *session.Session) error {
		var err error
		view, err = s.Describe()
		return err
	})
	return view, err
}

func (p *Prompter) variable(ctx context.Context, key string) (session.VariableView, error) {
	view, err := p.describe(ctx)
	if err != nil {
		return session.VariableView{}, err
	}
	for _, v := range view.Variables {
		if v.Key == key {
			return v, nil
		}
	}
	return session.VariableView{}, fmt.Errorf("%w: %s", domain.ErrUnknownVariable, key)
}

func (p *Prompter) reset(ctx context.Context, i int) error {
	return p.mgr.Update(ctx, p.id, func(s *session.Session) error {
		_, err := s.ResetStage(i)
		return err
	})
}

func (p *Prompter) ask(ctx context.Context, key string) error {
	for {
		v, err := p.variable(ctx, key)
		if err != nil {
			return err
		}
		if v.Blocked {
			fmt.Fprintf(p.out, "%s: %s\n", key, p.palette.Error("no legal value"))
			return nil
		}

		prompt := fmt.Sprintf("%s %s", key, p.palette.Faint(v.Domain.String()))
		if v.Value.IsSet() {
			prompt += fmt.Sprintf(" [%s]", p.palette.Value(string(v.Value)))
		}
		fmt.Fprintf(p.out, "%s: ", prompt)

		if !p.in.Scan() {
			if err := p.in.Err(); err != nil {
				return err
			}
			return fmt.Errorf("input closed before %s was set: %w", key, io.ErrUnexpectedEOF)
		}
		line := strings.TrimSpace(p.in.Text())

		switch {
		case line == "":
			if v.Value.IsSet() {
				return nil
			}
			fmt.Fprintln(p.out, p.palette.Error("a value is required"))
		case line == "?":
			p.help(v)
		case strings.HasPrefix(line, "?"):
			p.explain(ctx, key, domain.Value(strings.TrimPrefix(line, "?")))
		case line == "-":
			if err := p.set(ctx, key, domain.Unset); fatal(err) {
				return err
			}
		default:
			err := p.set(ctx, key, domain.Value(line))
			if err == nil || fatal(err) {
				return err
			}
		}
	}
}

// set assigns value, or unsets key when value is Unset. Rejections are printed and
// returned.
func (p *Prompter) set(ctx context.Context, key string, value domain.Value) error {
	var batch domain.Batch
	err := p.mgr.Update(ctx, p.id, func(s *session.Session) error {
		var err error
		if value.IsSet() {
			batch, err = s.SetValue(key, value)
		} else {
			batch, err = s.Unset(key)
		}
		return err
	})
	if err != nil {
		fmt.Fprintln(p.out, p.palette.Error(describeError(err)))
		return err
	}
	if cleared := batch.Cleared(); len(cleared) > 0 {
		fmt.Fprintln(p.out, p.palette.Faint("cleared: "+strings.Join(cleared, ", ")))
	}
	return nil
}

func (p *Prompter) help(v session.VariableView) {
	if v.Description != "" {
		fmt.Fprintln(p.out, v.Description)
	}
	for _, opt := range v.Domain.Values() {
		line := "  " + p.palette.Legal(string(opt))
		if h := v.Help[opt]; h != "" {
			line += "  " + h
		}
		fmt.Fprintln(p.out, line)
	}
}

func (p *Prompter) explain(ctx context.Context, key string, value domain.Value) {
	var reasons []string
	err := p.mgr.View(ctx, p.id, func(s *session.Session) error {
		var err error
		reasons, err = s.Explain(key, value)
		return err
	})
	switch {
	case err != nil:
		fmt.Fprintln(p.out, p.palette.Error(err.Error()))
	case len(reasons) == 0:
		fmt.Fprintf(p.out, "%s is legal for %s\n", value, key)
	default:
		for _, r := range reasons {
			fmt.Fprintln(p.out, "  - "+r)
		}
	}
}

// fatal reports errors the user cannot recover from by entering another value.
func fatal(err error) bool {
	return err != nil && (domain.IsDefect(err) ||
		errors.Is(err, domain.ErrSessionBroken) ||
		errors.Is(err, domain.ErrSessionNotFound))
}
