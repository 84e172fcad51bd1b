package poller

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/byod/internal/model"
)

// SuccessPredicate decides whether a directive status means "render".
type SuccessPredicate func(status int) bool

// NotStatus treats every status except code as success. This is how the
// service has been observed to behave: failures carry 500, successes 0
// or other values.
func NotStatus(code int) SuccessPredicate {
	return func(status int) bool { return status != code }
}

// StatusZero accepts only status 0.
func StatusZero(status int) bool { return status == 0 }

// Success modes accepted by ParseSuccessMode.
const (
	SuccessNotServerError = "not-server-error"
	SuccessZero           = "zero"
)

// ParseSuccessMode maps a configured mode to a predicate.
func ParseSuccessMode(mode string, serverErrorStatus int) (SuccessPredicate, error) {
	switch mode {
	case "", SuccessNotServerError:
		return NotStatus(serverErrorStatus), nil
	case SuccessZero:
		return StatusZero, nil
	default:
		return nil, fmt.Errorf("unknown success mode %q", mode)
	}
}

// Schedule is the poller-owned refresh state.
type Schedule struct {
	Interval time.Duration
	First    bool
}

// Status is a point-in-time snapshot of the poller for read surfaces.
type Status struct {
	Interval      time.Duration
	NextPollAt    time.Time
	Cycles        int64
	LastCycle     *model.CycleRecord
	LastDirective *model.Directive
}

type outcomeKind int

const (
	kindDelivered outcomeKind = iota
	kindRecoverable
	kindFatal
	kindCancelled
)

// outcome is the tagged result of one poll cycle. Every step of a cycle
// produces exactly one, and settle is the only place that acts on it.
type outcome struct {
	kind      outcomeKind
	class     model.Outcome
	reason    string
	err       error
	directive *model.Directive
	payload   *model.Payload
	rawBody   []byte
	httpCode  int
}

func delivered(d *model.Directive, p *model.Payload, httpCode int) outcome {
	return outcome{kind: kindDelivered, class: model.OutcomeRendered, directive: d, payload: p, httpCode: httpCode}
}

func recoverable(class model.Outcome, reason string, err error) outcome {
	return outcome{kind: kindRecoverable, class: class, reason: reason, err: err}
}

func fatal(reason string, err error) outcome {
	return outcome{kind: kindFatal, class: model.OutcomeFatal, reason: reason, err: err}
}

func cancelled(err error) outcome {
	return outcome{kind: kindCancelled, err: err}
}
