package operator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/stretchr/testify/suite"
)

// TerminalSuite checks prompt construction and answer handling.
//
// Justification for unit tests: the terminal itself is survey's concern;
// what matters here is which prompt is shown and how answers, interrupts
// and cancellation map to results.
type TerminalSuite struct {
	suite.Suite
	asked []survey.Prompt
}

func TestTerminalSuite(t *testing.T) {
	suite.Run(t, new(TerminalSuite))
}

func (s *TerminalSuite) SetupTest() {
	s.asked = nil
}

func (s *TerminalSuite) newTerminal(answer func(p survey.Prompt, response any) error) *Terminal {
	return New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		withAsk(func(p survey.Prompt, response any, _ ...survey.AskOpt) error {
			s.asked = append(s.asked, p)
			return answer(p, response)
		}),
	)
}

// =============================================================================
// Confirm
// =============================================================================

func (s *TerminalSuite) TestConfirmReturnsAnswer() {
	term := s.newTerminal(func(_ survey.Prompt, response any) error {
		*response.(*bool) = true
		return nil
	})

	ok, err := term.Confirm(context.Background(), "Proceed with Jane Doe?")
	s.Require().NoError(err)
	s.True(ok)

	s.Require().Len(s.asked, 1)
	confirm, isConfirm := s.asked[0].(*survey.Confirm)
	s.Require().True(isConfirm)
	s.Equal("Proceed with Jane Doe?", confirm.Message)
	s.False(confirm.Default)
}

func (s *TerminalSuite) TestInterruptIsAborted() {
	term := s.newTerminal(func(survey.Prompt, any) error { return terminal.InterruptErr })

	_, err := term.Confirm(context.Background(), "Proceed?")
	s.ErrorIs(err, ErrAborted)
}

func (s *TerminalSuite) TestPromptFailureIsWrapped() {
	boom := errors.New("tty gone")
	term := s.newTerminal(func(survey.Prompt, any) error { return boom })

	_, err := term.Confirm(context.Background(), "Proceed?")
	s.ErrorIs(err, boom)
}

func (s *TerminalSuite) TestCancelWhileWaiting() {
	release := make(chan struct{})
	defer close(release)
	term := New(withAsk(func(survey.Prompt, any, ...survey.AskOpt) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := term.Confirm(ctx, "Proceed?")
	s.ErrorIs(err, context.DeadlineExceeded)
}

func (s *TerminalSuite) TestCancelledBeforeAsking() {
	term := s.newTerminal(func(survey.Prompt, any) error { return nil })
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := term.Confirm(ctx, "Proceed?")
	s.ErrorIs(err, context.Canceled)
	s.Empty(s.asked)
}

// =============================================================================
// ReviewOccupation
// =============================================================================

func (s *TerminalSuite) TestReviewOccupationOffersCategories() {
	term := s.newTerminal(func(_ survey.Prompt, response any) error {
		*response.(*string) = "Petani"
		return nil
	})
	categories := []string{"Petani", "Buruh", "Lainnya"}

	got, err := term.ReviewOccupation(context.Background(), "3578102009820006", "Jane Doe", "penggarap sawah", categories)
	s.Require().NoError(err)
	s.Equal("Petani", got)

	sel, isSelect := s.asked[0].(*survey.Select)
	s.Require().True(isSelect)
	s.Equal(categories, sel.Options)
	s.Equal("Lainnya", sel.Default)
	s.Contains(sel.Message, "penggarap sawah")
	s.Contains(sel.Message, "3578102009820006")
}

func (s *TerminalSuite) TestReviewOccupationWithoutCategories() {
	term := s.newTerminal(func(survey.Prompt, any) error { return nil })

	got, err := term.ReviewOccupation(context.Background(), "1", "x", "y", nil)
	s.Require().NoError(err)
	s.Empty(got)
	s.Empty(s.asked)
}
