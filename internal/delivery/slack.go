// Package delivery sends bot replies to the chat platform.
//
// Slack implements services.Deliverer on top of github.com/slack-go/slack.
// Every failure is returned as a *DeliveryError carrying the operation and
// channel so callers can log it without inspecting the Slack client's
// error types.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

// DeliveryError reports a reply that could not be delivered.
type DeliveryError struct {
	Op      string // "post" or "update"
	Channel string
	Err     error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery: %s to %s: %v", e.Op, e.Channel, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Retryable reports whether the platform asked us to back off.
func (e *DeliveryError) Retryable() bool {
	var rl *slack.RateLimitedError
	return errors.As(e.Err, &rl)
}

// ErrNoToken is returned by NewSlack without a bot token.
var ErrNoToken = errors.New("slack bot token is required")

// Options configures NewSlack.
type Options struct {
	Token string
	// APIURL overrides the Web API base URL (tests). Must end in "/".
	APIURL     string
	HTTPClient *http.Client
}

// Slack delivers replies through the Slack Web API.
type Slack struct {
	client *slack.Client
}

// NewSlack builds a Slack deliverer.
func NewSlack(opts Options) (*Slack, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, ErrNoToken
	}
	var copts []slack.Option
	if opts.APIURL != "" {
		u := opts.APIURL
		if !strings.HasSuffix(u, "/") {
			u += "/"
		}
		copts = append(copts, slack.OptionAPIURL(u))
	}
	if opts.HTTPClient != nil {
		copts = append(copts, slack.OptionHTTPClient(opts.HTTPClient))
	}
	return &Slack{client: slack.New(opts.Token, copts...)}, nil
}

// Post sends msg as a new message, threaded when msg.ThreadTS is set.
func (s *Slack) Post(ctx context.Context, msg domain.OutboundMessage) error {
	options := []slack.MsgOption{slack.MsgOptionText(msg.Text, false)}
	if msg.ThreadTS != "" {
		options = append(options, slack.MsgOptionTS(msg.ThreadTS))
	}
	if _, _, err := s.client.PostMessageContext(ctx, msg.Channel, options...); err != nil {
		return &DeliveryError{Op: "post", Channel: msg.Channel, Err: err}
	}
	return nil
}

// Update replaces the text of the message msg.TS in msg.Channel.
func (s *Slack) Update(ctx context.Context, msg domain.OutboundMessage) error {
	if msg.TS == "" {
		return &DeliveryError{Op: "update", Channel: msg.Channel, Err: errors.New("missing message timestamp")}
	}
	if _, _, _, err := s.client.UpdateMessageContext(ctx, msg.Channel, msg.TS, slack.MsgOptionText(msg.Text, false)); err != nil {
		return &DeliveryError{Op: "update", Channel: msg.Channel, Err: err}
	}
	return nil
}
