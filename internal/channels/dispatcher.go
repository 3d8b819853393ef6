package channels

import (
	"context"
	"fmt"
	"log/slog"
)

// IgnoreReason explains why an event produced no reply.
type IgnoreReason string

const (
	IgnoreMalformedEvent    IgnoreReason = "malformed_event"
	IgnoreNotMessage        IgnoreReason = "not_message"
	IgnoreMissingReplyToken IgnoreReason = "missing_reply_token"
	IgnoreNotText           IgnoreReason = "not_text"
)

// EventClass is the result of classifying one event: either actionable
// with a reply token and text, or ignored with a reason.
type EventClass struct {
	Actionable bool
	ReplyToken string
	Text       string
	Reason     IgnoreReason
}

// ClassifyEvent decides whether ev should be answered.
func ClassifyEvent(ev Event) EventClass {
	switch {
	case ev.Malformed:
		return EventClass{Reason: IgnoreMalformedEvent}
	case ev.Type != EventTypeMessage:
		return EventClass{Reason: IgnoreNotMessage}
	case ev.ReplyToken == "":
		return EventClass{Reason: IgnoreMissingReplyToken}
	case ev.Message == nil || ev.Message.Type != MessageTypeText:
		return EventClass{Reason: IgnoreNotText}
	}
	return EventClass{
		Actionable: true,
		ReplyToken: ev.ReplyToken,
		Text:       ev.Message.Text,
	}
}

// EventSink handles one actionable event.
type EventSink interface {
	Handle(ctx context.Context, replyToken, text string) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, replyToken, text string) error

func (f EventSinkFunc) Handle(ctx context.Context, replyToken, text string) error {
	return f(ctx, replyToken, text)
}

// DispatchOutcome records what happened to one event of a batch.
type DispatchOutcome struct {
	Index int
	Class EventClass
	Err   error
}

// Handled reports whether the event reached the sink and succeeded.
func (o DispatchOutcome) Handled() bool {
	return o.Class.Actionable && o.Err == nil
}

// Dispatcher feeds actionable events to a sink, one at a time and in order.
type Dispatcher struct {
	logger  *slog.Logger
	metrics *Metrics
}

// NewDispatcher creates a dispatcher. A nil logger uses slog.Default and a
// nil metrics records nothing.
func NewDispatcher(logger *slog.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{logger: logger, metrics: metrics}
}

// Dispatch processes events sequentially. A sink failure (error or panic)
// is recorded in that event's outcome and does not stop the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event, sink EventSink) []DispatchOutcome {
	outcomes := make([]DispatchOutcome, 0, len(events))
	for i, ev := range events {
		class := ClassifyEvent(ev)
		outcome := DispatchOutcome{Index: i, Class: class}

		if !class.Actionable {
			d.logger.DebugContext(ctx, "channel event skipped",
				"index", i,
				"event_type", ev.Type,
				"reason", string(class.Reason),
			)
			d.metrics.observeEvent(string(class.Reason))
			outcomes = append(outcomes, outcome)
			continue
		}

		d.metrics.observeEvent("actionable")
		outcome.Err = handleIsolated(ctx, sink, class)
		if outcome.Err != nil {
			attrs := []any{
				"index", i,
				"reply_token", class.ReplyToken,
				"error", outcome.Err,
			}
			if sendErr, ok := AsSendError(outcome.Err); ok {
				attrs = append(attrs, "status", sendErr.StatusCode, "permanent", sendErr.Permanent())
			}
			d.logger.ErrorContext(ctx, "channel reply failed", attrs...)
		} else {
			d.logger.InfoContext(ctx, "channel reply sent",
				"index", i,
				"reply_token", class.ReplyToken,
				"text_length", len(class.Text),
			)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func handleIsolated(ctx context.Context, sink EventSink, class EventClass) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event sink panicked: %v", r)
		}
	}()
	return sink.Handle(ctx, class.ReplyToken, class.Text)
}

func summarizeOutcomes(outcomes []DispatchOutcome) (handled, failed, ignored int) {
	for _, o := range outcomes {
		switch {
		case o.Handled():
			handled++
		case o.Class.Actionable:
			failed++
		default:
			ignored++
		}
	}
	return handled, failed, ignored
}
