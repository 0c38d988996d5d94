package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// newFeedServer starts a test WebSocket server that runs handler for each
// incoming connection.
func newFeedServer(t *testing.T, handler func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "done")
		handler(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

func TestClientDeliversUtterances(t *testing.T) {
	t.Parallel()
	want := Utterance{
		AccountID:    "acct-1",
		SpeakerClaim: "member-1",
		Confidence:   0.92,
		Text:         "call maria",
		At:           time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	url := newFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		// One malformed frame first; the client must skip it.
		_ = conn.Write(ctx, websocket.MessageText, []byte("{not json"))
		_ = writeJSON(ctx, conn, want)
		<-ctx.Done()
	})

	client, err := New(url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	select {
	case got := <-client.Utterances():
		if got.Text != want.Text || got.SpeakerClaim != want.SpeakerClaim || got.Confidence != want.Confidence {
			t.Errorf("utterance = %+v, want %+v", got, want)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for utterance")
	}
}

func TestClientReconnects(t *testing.T) {
	t.Parallel()
	event := Utterance{AccountID: "acct-1", Text: "call maria"}
	connects := make(chan struct{}, 4)
	url := newFeedServer(t, func(ctx context.Context, conn *websocket.Conn) {
		connects <- struct{}{}
		_ = writeJSON(ctx, conn, event)
		// Drop the connection immediately; the client should come back.
	})

	client, err := New(url, WithBackoff(10*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go client.Run(ctx)

	for i := range 2 {
		select {
		case <-connects:
		case <-ctx.Done():
			t.Fatalf("timed out waiting for connection %d", i+1)
		}
	}
}

func TestClientRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	url := newFeedServer(t, func(ctx context.Context, _ *websocket.Conn) {
		<-ctx.Done()
	})

	client, err := New(url)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop on cancellation")
	}

	if _, open := <-client.Utterances(); open {
		t.Error("Utterances() channel still open after Run returned")
	}
}

func TestNewRequiresURL(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Error("New(\"\") error = nil, want error")
	}
}
