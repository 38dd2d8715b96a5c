// Package services – Dispatcher
//
// Dispatcher connects inbound chat events to the live ResponderSet and
// delivers any reply through a Deliverer. Delivery failures are logged and
// counted but never returned: one failing reply must not affect the handling
// of any other message.
package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

// Deliverer sends replies to the chat platform.
type Deliverer interface {
	// Post sends a new message.
	Post(ctx context.Context, msg domain.OutboundMessage) error
	// Update rewrites the message identified by msg.TS.
	Update(ctx context.Context, msg domain.OutboundMessage) error
}

// Matcher produces the combined reply for a message.
type Matcher interface {
	Match(message string) (string, bool)
}

// ReplyMode selects how a reply is delivered.
type ReplyMode string

const (
	// ReplyThread posts the reply in the thread of the triggering message.
	ReplyThread ReplyMode = "thread"
	// ReplyChannel posts the reply as a new top-level channel message.
	ReplyChannel ReplyMode = "channel"
	// ReplyUpdate rewrites the triggering message with the reply appended.
	ReplyUpdate ReplyMode = "update"
)

// ParseReplyMode validates s. An empty string selects ReplyThread.
func ParseReplyMode(s string) (ReplyMode, error) {
	switch m := ReplyMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ReplyThread, nil
	case ReplyThread, ReplyChannel, ReplyUpdate:
		return m, nil
	default:
		return "", fmt.Errorf("unknown reply mode %q", s)
	}
}

// Outcome describes what Handle did with a message.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomeNoMatch   Outcome = "no_match"
	OutcomeDelivered Outcome = "delivered"
	OutcomeFailed    Outcome = "delivery_failed"
)

// Subtypes that still carry user-authored text worth scanning.
var scannedSubtypes = map[string]bool{
	"":                 true,
	"thread_broadcast": true,
	"file_share":       true,
}

// Dispatcher handles inbound messages.
type Dispatcher struct {
	Set  Matcher
	Out  Deliverer
	Mode ReplyMode
	// Timeout bounds a single delivery. Zero means no limit beyond ctx.
	Timeout time.Duration

	wg sync.WaitGroup
}

// NewDispatcher returns a Dispatcher using mode and timeout for deliveries.
func NewDispatcher(set Matcher, out Deliverer, mode ReplyMode, timeout time.Duration) *Dispatcher {
	return &Dispatcher{Set: set, Out: out, Mode: mode, Timeout: timeout}
}

// Handle processes one inbound message: events without a human author and
// edit/delete notifications are ignored; otherwise the message is matched
// and any reply delivered.
func (d *Dispatcher) Handle(ctx context.Context, in domain.InboundMessage) Outcome {
	tr := otel.Tracer("services/Dispatcher")
	ctx, span := tr.Start(ctx, "Handle",
		trace.WithAttributes(
			attribute.String("channel.id", in.Channel),
			attribute.String("user.id", in.User),
		),
	)
	defer span.End()

	outcome := d.handle(ctx, in)
	span.SetAttributes(attribute.String("outcome", string(outcome)))
	dispatched.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (d *Dispatcher) handle(ctx context.Context, in domain.InboundMessage) Outcome {
	if in.User == "" || in.BotID != "" || in.SubType == "bot_message" || !scannedSubtypes[in.SubType] {
		return OutcomeIgnored
	}

	reply, ok := d.Set.Match(in.Text)
	if !ok {
		return OutcomeNoMatch
	}

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	start := time.Now()
	err := d.deliver(ctx, in, reply)
	deliveryLat.Observe(time.Since(start).Seconds())
	if err != nil {
		log.Error().Err(err).
			Str("channel", in.Channel).
			Str("ts", in.TimeStamp).
			Str("mode", string(d.Mode)).
			Msg("reply delivery failed")
		return OutcomeFailed
	}
	return OutcomeDelivered
}

func (d *Dispatcher) deliver(ctx context.Context, in domain.InboundMessage, reply string) error {
	switch d.Mode {
	case ReplyChannel:
		return d.Out.Post(ctx, domain.OutboundMessage{Channel: in.Channel, Text: reply})
	case ReplyUpdate:
		return d.Out.Update(ctx, domain.OutboundMessage{
			Channel: in.Channel,
			TS:      in.TimeStamp,
			Text:    in.Text + "\n" + reply,
		})
	default:
		thread := in.ThreadTimeStamp
		if thread == "" {
			thread = in.TimeStamp
		}
		return d.Out.Post(ctx, domain.OutboundMessage{Channel: in.Channel, Text: reply, ThreadTS: thread})
	}
}

// HandleAsync handles in on its own goroutine. The work outlives the
// caller's cancellation (typically an HTTP request already acknowledged)
// but keeps its values for tracing. A panic in matching or delivery is
// logged and counted as a failed delivery.
func (d *Dispatcher) HandleAsync(ctx context.Context, in domain.InboundMessage) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("channel", in.Channel).
					Str("ts", in.TimeStamp).
					Msg("message handling panicked")
				dispatched.WithLabelValues(string(OutcomeFailed)).Inc()
			}
		}()
		d.Handle(ctx, in)
	}()
}

// Wait blocks until every HandleAsync call has finished.
func (d *Dispatcher) Wait() { d.wg.Wait() }
