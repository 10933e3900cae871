package alert

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ja7ad/procwatch/pkg/profile"
	"github.com/ja7ad/procwatch/pkg/table"
)

type Kind int

const (
	KindRaised Kind = iota + 1
	KindCleared
	// KindError carries a sampling failure (e.g. an unreadable /proc). It
	// shares the stream with alerts so nothing is thrown across the
	// publication boundary.
	KindError
	// KindExited reports that a process matched by an exit rule is gone.
	KindExited
)

func (k Kind) String() string {
	switch k {
	case KindRaised:
		return "raised"
	case KindCleared:
		return "cleared"
	case KindError:
		return "error"
	case KindExited:
		return "exited"
	default:
		return "unknown"
	}
}

// Event is an alert transition or a tagged error. It is emitted, not stored.
type Event struct {
	ID       string
	Kind     Kind
	Identity table.Identity
	Command  string
	Rule     profile.Rule
	Observed float64
	At       time.Time
	Err      error // KindError only
}

// ErrorEvent wraps a cycle failure for the event stream.
func ErrorEvent(err error, at time.Time) Event {
	return Event{ID: uuid.NewString(), Kind: KindError, At: at, Err: err}
}

func (e Event) String() string {
	if e.Kind == KindError {
		return fmt.Sprintf("%s %s: %v", e.At.Format(time.RFC3339), e.Kind, e.Err)
	}
	if e.Kind == KindExited {
		return fmt.Sprintf("%s %s %s pid=%d (%s)",
			e.At.Format(time.RFC3339), e.Kind, e.Rule.Name, e.Identity.PID, e.Command)
	}
	return fmt.Sprintf("%s %s %s pid=%d (%s) observed=%.2f",
		e.At.Format(time.RFC3339), e.Kind, e.Rule.Name, e.Identity.PID, e.Command, e.Observed)
}
