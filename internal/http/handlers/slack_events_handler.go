// Slack Events API handler.
//
// POST /slack/events receives every event Slack delivers for the app. The
// request signature is verified with the signing secret before the body is
// parsed. url_verification challenges are answered inline; message events
// are acknowledged immediately and dispatched asynchronously, since Slack
// expects an answer within three seconds.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"

	"github.com/tbourn/go-responder-bot/internal/domain"
	"github.com/tbourn/go-responder-bot/internal/http/middleware"
)

// EventDispatcher accepts inbound messages for background handling.
type EventDispatcher interface {
	HandleAsync(ctx context.Context, in domain.InboundMessage)
}

// SlackEvents serves the Slack Events API endpoint.
type SlackEvents struct {
	secret string
	disp   EventDispatcher
}

// NewSlackEvents returns a handler verifying requests with signingSecret.
func NewSlackEvents(signingSecret string, disp EventDispatcher) *SlackEvents {
	return &SlackEvents{secret: signingSecret, disp: disp}
}

// Handle godoc
// @ID          slackEvents
// @Summary     Slack Events API endpoint
// @Description Verifies the Slack signature, answers url_verification and dispatches message events.
// @Tags        Slack
// @Accept      json
// @Produce     plain
// @Param       X-Slack-Signature          header  string  true  "v0=<hex hmac>"
// @Param       X-Slack-Request-Timestamp  header  string  true  "Unix seconds"
// @Success     200  {string}  string  "Acknowledged (challenge echoed for url_verification)"
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed event"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad signature"
// @Router      /slack/events [post]
func (h *SlackEvents) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unreadable body")
		return
	}

	sv, err := slack.NewSecretsVerifier(c.Request.Header, h.secret)
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeBadSignature, err.Error())
		return
	}
	if _, err := sv.Write(body); err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeBadSignature, err.Error())
		return
	}
	if err := sv.Ensure(); err != nil {
		fail(c, http.StatusUnauthorized, ErrCodeBadSignature, "signature mismatch")
		return
	}

	ev, err := slackevents.ParseEvent(json.RawMessage(body), slackevents.OptionNoVerifyToken())
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed event")
		return
	}

	switch ev.Type {
	case slackevents.URLVerification:
		var ch slackevents.ChallengeResponse
		if err := json.Unmarshal(body, &ch); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "malformed challenge")
			return
		}
		c.String(http.StatusOK, ch.Challenge)
		return

	case slackevents.CallbackEvent:
		if msg, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent); ok {
			middleware.LoggerFrom(c).Debug().
				Str("channel", msg.Channel).
				Str("subtype", msg.SubType).
				Msg("slack message event")
			h.disp.HandleAsync(c.Request.Context(), inbound(msg))
		}
	}
	c.Status(http.StatusOK)
}

func inbound(m *slackevents.MessageEvent) domain.InboundMessage {
	return domain.InboundMessage{
		User:            m.User,
		BotID:           m.BotID,
		SubType:         m.SubType,
		Channel:         m.Channel,
		Text:            m.Text,
		TimeStamp:       m.TimeStamp,
		ThreadTimeStamp: m.ThreadTimeStamp,
	}
}
