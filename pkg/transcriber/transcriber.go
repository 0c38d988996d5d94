// Package transcriber consumes finalized utterance events from the external
// transcription front-end over a streaming WebSocket feed.
//
// Speech-to-text itself happens outside the engine: the front-end listens,
// recognises the speaker, transcribes, and publishes one JSON event per
// finished utterance. The [Client] here dials the feed, decodes events into
// [Utterance] values and delivers them on a channel for the resolution
// pipeline, reconnecting with exponential backoff when the feed drops.
package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultBackoff = 2 * time.Second
	maxBackoff     = time.Minute
)

// Utterance is one finalized transcription event from the feed.
type Utterance struct {
	// AccountID is the account the utterance belongs to.
	AccountID string `json:"account_id"`

	// SpeakerClaim is the member the front-end attributed the voice to.
	SpeakerClaim string `json:"speaker_claim"`

	// Confidence is the voice-match confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Text is the transcribed utterance.
	Text string `json:"text"`

	// At is when the utterance finished.
	At time.Time `json:"at"`
}

// Option is a functional option for configuring the [Client].
type Option func(*Client)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBackoff sets the initial reconnect delay. It doubles after every
// failed attempt up to one minute and resets on a successful connection.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

// WithHeader adds an HTTP header to the dial request, e.g. an auth token.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.header.Set(key, value)
	}
}

// Client consumes the utterance feed at a fixed URL.
type Client struct {
	url     string
	header  http.Header
	backoff time.Duration
	logger  *slog.Logger
	events  chan Utterance
}

// New creates a [Client] for the feed at url ("ws://" or "wss://"). Call
// [Client.Run] to start consuming.
func New(url string, opts ...Option) (*Client, error) {
	if url == "" {
		return nil, errors.New("transcriber: url must not be empty")
	}
	c := &Client{
		url:     url,
		header:  http.Header{},
		backoff: defaultBackoff,
		events:  make(chan Utterance, 64),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Utterances returns the channel of decoded feed events. The channel is
// closed when [Client.Run] returns.
func (c *Client) Utterances() <-chan Utterance {
	return c.events
}

// Run dials the feed and delivers events until ctx is cancelled. Connection
// drops are retried with exponential backoff; Run only returns the context
// error.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)
	backoff := c.backoff
	for {
		dialed, err := c.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if dialed {
			backoff = c.backoff
		}
		c.logger.Warn("utterance feed disconnected",
			"url", c.url,
			"retry_in", backoff,
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// consume holds one connection open and decodes events until it breaks.
// dialed reports whether the connection was established at all, which resets
// the caller's backoff.
func (c *Client) consume(ctx context.Context) (dialed bool, _ error) {
	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPHeader: c.header,
	})
	if err != nil {
		return false, err
	}
	defer conn.Close(websocket.StatusNormalClosure, "shutting down")
	c.logger.Info("utterance feed connected", "url", c.url)

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		if msgType != websocket.MessageText {
			continue
		}
		var u Utterance
		if err := json.Unmarshal(data, &u); err != nil {
			c.logger.Warn("discarding malformed utterance event", "error", err)
			continue
		}
		select {
		case c.events <- u:
		case <-ctx.Done():
			return true, ctx.Err()
		}
	}
}
