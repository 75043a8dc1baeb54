// Package operator puts escalations in front of the human at the terminal.
package operator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrAborted is returned when the operator interrupts a prompt.
var ErrAborted = errors.New("operator aborted prompt")

type askFunc func(p survey.Prompt, response any, opts ...survey.AskOpt) error

// Terminal asks questions on an interactive terminal, one at a time.
type Terminal struct {
	mu     sync.Mutex
	ask    askFunc
	stdio  []survey.AskOpt
	logger *slog.Logger
}

type Option func(*Terminal)

func WithLogger(l *slog.Logger) Option {
	return func(t *Terminal) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithStdio redirects prompts away from the process terminal.
func WithStdio(in terminal.FileReader, out terminal.FileWriter, errOut io.Writer) Option {
	return func(t *Terminal) {
		t.stdio = []survey.AskOpt{survey.WithStdio(in, out, errOut)}
	}
}

func withAsk(fn askFunc) Option {
	return func(t *Terminal) { t.ask = fn }
}

func New(opts ...Option) *Terminal {
	t := &Terminal{ask: survey.AskOne, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Interactive reports whether stdin is a terminal a human can answer on.
func Interactive() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Confirm asks a yes/no question. It waits for as long as the operator
// takes; cancelling ctx returns ctx.Err() without an answer.
func (t *Terminal) Confirm(ctx context.Context, prompt string) (bool, error) {
	var ok bool
	err := t.prompt(ctx, &survey.Confirm{Message: prompt, Default: false}, &ok)
	if err != nil {
		return false, err
	}
	t.logger.InfoContext(ctx, "operator answered", "prompt", prompt, "approved", ok)
	return ok, nil
}

// ReviewOccupation asks the operator to pick a category for occupation text
// no rule recognized. Categories are offered in the given order.
func (t *Terminal) ReviewOccupation(ctx context.Context, nik, name, text string, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", nil
	}
	var choice string
	err := t.prompt(ctx, &survey.Select{
		Message: fmt.Sprintf("Occupation %q for %s (%s) is unrecognized. Pick a category:", text, name, nik),
		Options: categories,
		Default: categories[len(categories)-1],
	}, &choice)
	if err != nil {
		return "", err
	}
	t.logger.InfoContext(ctx, "operator classified occupation", "nik", nik, "text", text, "category", choice)
	return choice, nil
}

func (t *Terminal) prompt(ctx context.Context, p survey.Prompt, response any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	// survey has no cancellation; an abandoned prompt ends with the process
	done := make(chan error, 1)
	go func() { done <- t.ask(p, response, t.stdio...) }()

	select {
	case err := <-done:
		if errors.Is(err, terminal.InterruptErr) {
			return ErrAborted
		}
		if err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
