package commentsync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the channel connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	// StateClosed is terminal: the channel was shut down by its owner.
	StateClosed State = "closed"
	// StateFailed is terminal: reconnect attempts were exhausted.
	StateFailed State = "failed"
)

const (
	maxReconnectAttempts = 5
	baseReconnectDelay   = time.Second
	maxReconnectDelay    = 30 * time.Second
)

// reconnectDelay returns the backoff before reconnect attempt n:
// min(1s * 2^n, 30s).
func reconnectDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		// 2^5s is already past the cap; avoid shifting into overflow.
		attempt = 5
	}
	d := baseReconnectDelay << uint(attempt)
	if d > maxReconnectDelay {
		d = maxReconnectDelay
	}
	return d
}

// ChannelOptions configures a comment event channel.
type ChannelOptions struct {
	// BaseURL of the comments service, e.g. "https://api.vidhub.io".
	BaseURL string
	VideoID string
	// Token is an optional bearer token for the stream request.
	Token string
	// HTTPClient must not set a timeout; the stream stays open
	// indefinitely. Defaults to a fresh client.
	HTTPClient *http.Client
	Logger     *zap.Logger
	// OnEvent receives every valid comment event, in delivery order,
	// from the channel's own goroutine.
	OnEvent func(Event)
	// OnState is invoked on every state transition. The error is
	// non-nil only for StateFailed.
	OnState func(State, error)
}

// Channel maintains one live subscription to a video's comment event
// stream. Connection errors are retried with capped exponential
// backoff; after maxReconnectAttempts consecutive failures the channel
// gives up and reports StateFailed. A Channel is single-use: Start it
// once and Close it when the view goes away.
type Channel struct {
	opts   ChannelOptions
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state State
	err   error

	// failures counts consecutive failed connection attempts; touched
	// only by the run goroutine, reset when a connected frame arrives.
	failures int

	// Injection points for tests.
	dial  func(ctx context.Context) (io.ReadCloser, error)
	delay func(attempt int) time.Duration
}

// NewChannel builds a channel. It does not connect until Start.
func NewChannel(opts ChannelOptions) (*Channel, error) {
	if strings.TrimSpace(opts.VideoID) == "" {
		return nil, errors.New("commentsync: video id is required")
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("commentsync: base url is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		state:  StateDisconnected,
		delay:  reconnectDelay,
	}
	c.dial = c.httpDial
	return c, nil
}

// Start opens the subscription in a background goroutine.
func (c *Channel) Start() {
	go c.run()
}

// Close tears down the transport and cancels any pending reconnect.
// It blocks until the channel goroutine has stopped.
func (c *Channel) Close() {
	c.cancel()
	<-c.done
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the terminal error, non-nil only after StateFailed.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Channel) run() {
	defer close(c.done)
	for {
		if c.ctx.Err() != nil {
			c.setState(StateClosed, nil)
			return
		}
		c.setState(StateConnecting, nil)

		err := c.connectOnce()
		if c.ctx.Err() != nil {
			c.setState(StateClosed, nil)
			return
		}
		c.opts.Logger.Warn("comment stream disconnected",
			zap.String("video_id", c.opts.VideoID),
			zap.Int("failures", c.failures), zap.Error(err))

		if c.failures >= maxReconnectAttempts {
			c.setState(StateFailed, fmt.Errorf(
				"comment stream: giving up after %d reconnect attempts: %w",
				maxReconnectAttempts, err))
			return
		}
		c.setState(StateDisconnected, nil)

		t := time.NewTimer(c.delay(c.failures))
		select {
		case <-c.ctx.Done():
			t.Stop()
			c.setState(StateClosed, nil)
			return
		case <-t.C:
		}
		c.failures++
	}
}

// connectOnce dials and consumes the stream until it breaks. The old
// transport is always closed before the next attempt dials, so at most
// one connection is ever live.
func (c *Channel) connectOnce() error {
	body, err := c.dial(c.ctx)
	if err != nil {
		return err
	}
	defer body.Close()

	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var event string
	var data strings.Builder
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			c.handleFrame(event, data.String())
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			// Multiple data lines in one frame join with a newline.
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func (c *Channel) handleFrame(event, data string) {
	switch event {
	case "connected":
		c.failures = 0
		c.setState(StateConnected, nil)
	case "comment":
		ev, err := ParseEvent([]byte(data))
		if err != nil {
			// Malformed frames are dropped; the stream stays alive.
			c.opts.Logger.Warn("malformed comment frame",
				zap.String("video_id", c.opts.VideoID), zap.Error(err))
			return
		}
		if c.opts.OnEvent != nil {
			c.opts.OnEvent(ev)
		}
	}
}

func (c *Channel) setState(s State, err error) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	if err != nil {
		c.err = err
	}
	c.mu.Unlock()
	if changed && c.opts.OnState != nil {
		c.opts.OnState(s, err)
	}
}

func (c *Channel) httpDial(ctx context.Context) (io.ReadCloser, error) {
	u := strings.TrimRight(c.opts.BaseURL, "/") +
		"/v1/videos/" + url.PathEscape(c.opts.VideoID) + "/comments/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("comment stream: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
