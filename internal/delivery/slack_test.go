package delivery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/tbourn/go-responder-bot/internal/domain"
)

// fakeSlack records form posts to the Web API and answers with canned JSON.
type fakeSlack struct {
	mu    sync.Mutex
	calls map[string][]url.Values
	reply map[string]string
}

func newFakeSlack(t *testing.T) (*fakeSlack, *httptest.Server) {
	t.Helper()
	f := &fakeSlack{calls: map[string][]url.Values{}, reply: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		method := r.URL.Path[1:]
		f.mu.Lock()
		f.calls[method] = append(f.calls[method], r.PostForm)
		body, ok := f.reply[method]
		f.mu.Unlock()
		if !ok {
			body = `{"ok":true,"channel":"C1","ts":"1700000000.000100","text":"x"}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func TestNewSlack_RequiresToken(t *testing.T) {
	if _, err := NewSlack(Options{Token: " "}); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestSlack_PostThreaded(t *testing.T) {
	f, srv := newFakeSlack(t)
	s, err := NewSlack(Options{Token: "xoxb-test", APIURL: srv.URL})
	if err != nil {
		t.Fatalf("NewSlack: %v", err)
	}

	err = s.Post(context.Background(), domain.OutboundMessage{Channel: "C1", Text: "https://t/PD-42", ThreadTS: "100.1"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	calls := f.calls["chat.postMessage"]
	if len(calls) != 1 {
		t.Fatalf("postMessage calls = %d", len(calls))
	}
	form := calls[0]
	if form.Get("channel") != "C1" || form.Get("text") != "https://t/PD-42" || form.Get("thread_ts") != "100.1" {
		t.Fatalf("unexpected form: %v", form)
	}
}

func TestSlack_PostChannelHasNoThread(t *testing.T) {
	f, srv := newFakeSlack(t)
	s, _ := NewSlack(Options{Token: "xoxb-test", APIURL: srv.URL + "/"})

	if err := s.Post(context.Background(), domain.OutboundMessage{Channel: "C1", Text: "hi"}); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if ts := f.calls["chat.postMessage"][0].Get("thread_ts"); ts != "" {
		t.Fatalf("thread_ts should be empty, got %q", ts)
	}
}

func TestSlack_Update(t *testing.T) {
	f, srv := newFakeSlack(t)
	s, _ := NewSlack(Options{Token: "xoxb-test", APIURL: srv.URL})

	if err := s.Update(context.Background(), domain.OutboundMessage{Channel: "C1", TS: "100.1", Text: "a\nb"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	form := f.calls["chat.update"][0]
	if form.Get("ts") != "100.1" || form.Get("text") != "a\nb" {
		t.Fatalf("unexpected form: %v", form)
	}

	err := s.Update(context.Background(), domain.OutboundMessage{Channel: "C1", Text: "x"})
	var de *DeliveryError
	if !errors.As(err, &de) || de.Op != "update" {
		t.Fatalf("expected DeliveryError for missing ts, got %v", err)
	}
}

func TestSlack_PlatformErrorIsDeliveryError(t *testing.T) {
	f, srv := newFakeSlack(t)
	f.reply["chat.postMessage"] = `{"ok":false,"error":"channel_not_found"}`
	s, _ := NewSlack(Options{Token: "xoxb-test", APIURL: srv.URL})

	err := s.Post(context.Background(), domain.OutboundMessage{Channel: "CX", Text: "hi"})
	var de *DeliveryError
	if !errors.As(err, &de) {
		t.Fatalf("expected DeliveryError, got %T %v", err, err)
	}
	if de.Channel != "CX" || de.Op != "post" || de.Retryable() {
		t.Fatalf("unexpected error fields: %+v", de)
	}
	if got := de.Error(); got != "delivery: post to CX: channel_not_found" {
		t.Fatalf("Error() = %q", got)
	}
}
