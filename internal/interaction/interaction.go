// Package interaction defines how a run talks to its human operator.
// The engine depends only on the UserInteraction interface; console,
// form, callback, and inbox-watcher adapters live behind it.
package interaction

import (
	"errors"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// ErrNoInteraction is returned when a run needs an answer but was
// started without any way to ask.
var ErrNoInteraction = errors.New("no user interaction available")

// UserInteraction is the port the engine blocks on when the planner or
// a worker needs the user.
type UserInteraction interface {
	// AskQuestions presents questions and returns one answer per
	// question, in the same order.
	AskQuestions(questions []models.Question) ([]models.Answer, error)
	// Notify surfaces a one-way message.
	Notify(message string)
	// RequestConfirmation asks a yes/no question with a default.
	RequestConfirmation(message string, def bool) (bool, error)
}

// Callback adapts plain functions to UserInteraction. Nil fields fall
// back to safe behavior: unanswerable questions error, notifications
// are dropped, confirmations return the default.
type Callback struct {
	OnAsk     func(questions []models.Question) ([]models.Answer, error)
	OnNotify  func(message string)
	OnConfirm func(message string, def bool) (bool, error)
}

var _ UserInteraction = (*Callback)(nil)

// AskQuestions delegates to OnAsk.
func (c *Callback) AskQuestions(questions []models.Question) ([]models.Answer, error) {
	if c.OnAsk == nil {
		return nil, ErrNoInteraction
	}
	return c.OnAsk(questions)
}

// Notify delegates to OnNotify.
func (c *Callback) Notify(message string) {
	if c.OnNotify != nil {
		c.OnNotify(message)
	}
}

// RequestConfirmation delegates to OnConfirm.
func (c *Callback) RequestConfirmation(message string, def bool) (bool, error) {
	if c.OnConfirm == nil {
		return def, nil
	}
	return c.OnConfirm(message, def)
}
