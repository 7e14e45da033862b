package commentsync

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Options configures a Controller.
type Options struct {
	// BaseURL of the comments service; required when Enabled.
	BaseURL string
	VideoID string
	Token   string
	// Initial is the server-rendered thread snapshot at mount time.
	Initial []ThreadNode
	// Enabled gates the live channel; a disabled controller still
	// serves the snapshot and accepts manual mutations.
	Enabled    bool
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Controller owns the reconciled comment tree for one mounted video
// view. Inbound channel events and manual optimistic mutations flow
// through the same idempotent tree operations, so a change applied
// locally and echoed back by the channel lands exactly once.
type Controller struct {
	mu      sync.Mutex
	opts    Options
	tree    []ThreadNode
	channel *Channel

	connected bool
	err       error
	closed    bool

	subs    map[int]func()
	nextSub int

	log *zap.Logger
}

// NewController builds a controller seeded with the initial snapshot
// and, when enabled, opens the event channel.
func NewController(opts Options) (*Controller, error) {
	if strings.TrimSpace(opts.VideoID) == "" {
		return nil, errors.New("commentsync: video id is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	c := &Controller{
		opts: opts,
		tree: cloneTree(opts.Initial),
		subs: make(map[int]func()),
		log:  opts.Logger,
	}
	if opts.Enabled {
		if err := c.openChannel(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Comments returns the current reconciled tree. The result is a deep
// copy; later events do not mutate it.
func (c *Controller) Comments() []ThreadNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneTree(c.tree)
}

// Connected reports whether the live channel is currently up.
func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Err returns the terminal channel error, if reconnects were exhausted.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// AddComment applies an optimistic insert, typically right after the
// write API accepted the comment. The echoed channel event is absorbed
// as a duplicate.
func (c *Controller) AddComment(comment Comment) {
	c.mutate(func(t []ThreadNode) []ThreadNode { return AddComment(t, comment) })
}

// UpdateComment applies an optimistic body edit.
func (c *Controller) UpdateComment(id, body string) {
	c.mutate(func(t []ThreadNode) []ThreadNode { return UpdateComment(t, id, body) })
}

// RemoveComment applies an optimistic delete.
func (c *Controller) RemoveComment(id string) {
	c.mutate(func(t []ThreadNode) []ThreadNode { return RemoveComment(t, id) })
}

// Reset replaces the whole tree with a fresh server snapshot,
// discarding any local-only state. The server snapshot wins.
func (c *Controller) Reset(snapshot []ThreadNode) {
	c.mu.Lock()
	c.tree = cloneTree(snapshot)
	c.mu.Unlock()
	c.notify()
}

// Subscribe registers fn to run after every tree or connection change.
// The returned function unsubscribes and is idempotent.
func (c *Controller) Subscribe(fn func()) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// SetEnabled opens or tears down the live channel. Re-enabling after a
// terminal failure clears the error and starts over.
func (c *Controller) SetEnabled(enabled bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("commentsync: controller is closed")
	}
	ch := c.channel
	c.channel = nil
	if enabled {
		c.err = nil
	}
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	if !enabled {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
		c.notify()
		return nil
	}
	if err := c.openChannel(); err != nil {
		return err
	}
	c.notify()
	return nil
}

// Close shuts the controller down; terminal.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	ch := c.channel
	c.channel = nil
	c.connected = false
	c.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
}

func (c *Controller) openChannel() error {
	ch, err := NewChannel(ChannelOptions{
		BaseURL:    c.opts.BaseURL,
		VideoID:    c.opts.VideoID,
		Token:      c.opts.Token,
		HTTPClient: c.opts.HTTPClient,
		Logger:     c.log,
		OnEvent:    c.applyEvent,
		OnState:    c.onChannelState,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("commentsync: controller is closed")
	}
	c.channel = ch
	c.mu.Unlock()

	ch.Start()
	return nil
}

// applyEvent routes an inbound channel event through the same tree
// operations as the manual mutation path.
func (c *Controller) applyEvent(ev Event) {
	switch ev.Type {
	case EventCreated:
		c.AddComment(ev.Comment)
	case EventUpdated:
		c.UpdateComment(ev.Comment.ID, ev.Comment.Body)
	case EventDeleted:
		c.RemoveComment(ev.Comment.ID)
	}
}

func (c *Controller) onChannelState(s State, err error) {
	c.mu.Lock()
	c.connected = s == StateConnected
	if s == StateFailed && err != nil {
		c.err = err
	}
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) mutate(f func([]ThreadNode) []ThreadNode) {
	c.mu.Lock()
	next := f(c.tree)
	changed := !sameTree(next, c.tree)
	c.tree = next
	c.mu.Unlock()
	if changed {
		c.notify()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// sameTree reports whether two trees are the same slice, which is how
// the pure operations signal a no-op.
func sameTree(a, b []ThreadNode) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
