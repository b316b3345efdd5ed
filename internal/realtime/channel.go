package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultReconnectDelay is the fixed wait between a dropped connection and
// the next attempt.
const DefaultReconnectDelay = 5 * time.Second

// State is the lifecycle state of a Channel.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a Channel.
type Options struct {
	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration

	Logger zerolog.Logger

	// OnStateChange is called with the channel lock held on every
	// transition. It must not call back into the Channel.
	OnStateChange func(State)
}

// Channel keeps a best-effort live connection to a single streaming
// endpoint and hands each decoded message to one registered handler.
//
// Every connection attempt is tagged with a generation number. Close and
// each new attempt bump the generation, so a read loop belonging to an
// older attempt can neither deliver messages nor schedule reconnects.
// Retries continue indefinitely at a fixed delay until Close.
type Channel struct {
	dialer        Dialer
	delay         time.Duration
	logger        zerolog.Logger
	onStateChange func(State)

	// deliverMu is held while the handler runs so that Close can wait
	// out an in-flight delivery.
	deliverMu sync.Mutex

	mu         sync.Mutex
	state      State
	handler    func(Message)
	generation uint64
	cancel     context.CancelFunc
	conn       Conn
	timer      *time.Timer
	timerSeq   uint64
}

// NewChannel returns a disconnected Channel. Call OnMessage and then
// Connect to start it.
func NewChannel(dialer Dialer, opts Options) *Channel {
	delay := opts.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	return &Channel{
		dialer:        dialer,
		delay:         delay,
		logger:        opts.Logger.With().Str("component", "realtime").Logger(),
		onStateChange: opts.OnStateChange,
		state:         StateDisconnected,
	}
}

// OnMessage registers the handler invoked once per decoded message,
// replacing any previous handler. Messages are delivered one at a time
// from the connection's read goroutine.
func (c *Channel) OnMessage(handler func(Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = handler
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts a connection attempt. It is a no-op while an attempt is
// in flight, while a connection is open, and after Close.
func (c *Channel) Connect() {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateOpen, StateClosed:
		c.mu.Unlock()
		return
	}

	c.cancelPendingReconnect()
	c.generation++
	gen := c.generation
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.setState(StateConnecting)
	c.mu.Unlock()

	c.logger.Info().Uint64("attempt", gen).Msg("connecting")
	go c.run(ctx, gen)
}

// Close tears the channel down for good: the pending reconnect timer is
// cancelled, the live connection is detached from the handler and
// closed, and later Connect calls do nothing. Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	conn, cancel := c.teardown()
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	// Wait for a delivery that raced with teardown.
	c.deliverMu.Lock()
	c.deliverMu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("closing connection")
		}
	}
	c.logger.Info().Msg("channel closed")
}

// teardown detaches the current attempt and enters StateClosed. It
// returns the resources the caller must release outside the lock.
// Callers hold c.mu.
func (c *Channel) teardown() (Conn, context.CancelFunc) {
	c.cancelPendingReconnect()
	c.generation++
	c.handler = nil
	conn, cancel := c.conn, c.cancel
	c.conn, c.cancel = nil, nil
	c.setState(StateClosed)
	return conn, cancel
}

// cancelPendingReconnect stops the reconnect timer, if any, and
// invalidates a timer callback that has already fired but not yet taken
// the lock. Callers hold c.mu.
func (c *Channel) cancelPendingReconnect() {
	if c.timer == nil {
		return
	}
	c.timer.Stop()
	c.timer = nil
	c.timerSeq++
}

// scheduleReconnect arms a single reconnect timer, replacing any pending
// one. Callers hold c.mu.
func (c *Channel) scheduleReconnect() {
	c.cancelPendingReconnect()
	c.timerSeq++
	seq := c.timerSeq
	c.timer = time.AfterFunc(c.delay, func() { c.fireReconnect(seq) })
}

func (c *Channel) fireReconnect(seq uint64) {
	c.mu.Lock()
	if seq != c.timerSeq || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.mu.Unlock()
	c.Connect()
}

// pendingReconnects reports how many reconnect timers are armed.
func (c *Channel) pendingReconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return 0
	}
	return 1
}

func (c *Channel) setState(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

// run owns one connection attempt from dial to disconnect.
func (c *Channel) run(ctx context.Context, gen uint64) {
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn().Err(err).Uint64("attempt", gen).Msg("connection failed")
		}
		c.dropped(gen, nil)
		return
	}

	c.mu.Lock()
	if gen != c.generation || c.state == StateClosed {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.cancelPendingReconnect()
	c.setState(StateOpen)
	c.mu.Unlock()
	c.logger.Info().Uint64("attempt", gen).Msg("connected")

	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn().Err(err).Uint64("attempt", gen).Msg("connection lost")
			}
			c.dropped(gen, conn)
			return
		}

		msg, err := Decode(frame)
		if err != nil {
			c.logger.Warn().Err(err).Int("bytes", len(frame)).Msg("dropping undecodable message")
			continue
		}

		if !c.deliver(gen, msg) {
			return
		}
	}
}

// deliver hands msg to the handler if gen is still the live attempt.
func (c *Channel) deliver(gen uint64, msg Message) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	handler, current := c.handlerFor(gen)
	if !current {
		return false
	}
	if handler != nil {
		c.logger.Debug().Str("type", msg.Type()).Msg("message received")
		handler(msg)
	}
	return true
}

// handlerFor returns the registered handler and whether gen is still the
// live attempt.
func (c *Channel) handlerFor(gen uint64) (func(Message), bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state == StateClosed {
		return nil, false
	}
	return c.handler, true
}

// dropped releases the attempt's connection and, if the attempt is still
// current, schedules the next one. The connection is closed before the
// timer is armed so that no two attempts ever hold transport resources
// at once.
func (c *Channel) dropped(gen uint64, conn Conn) {
	if conn != nil {
		conn.Close()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.state == StateClosed {
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.conn = nil
	c.setState(StateDisconnected)
	c.scheduleReconnect()
	c.logger.Info().Dur("delay", c.delay).Msg("reconnect scheduled")
}
