package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/Rayus223/admin3/internal/calls"
	"github.com/Rayus223/admin3/internal/model"
)

// SyncState represents the current state of the scheduled-calls sync.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus describes the last fetch.
type SyncStatus struct {
	State    SyncState
	LastSync time.Time
	Error    error
}

// ScanResultMsg is a tea.Msg sent when a fetch-and-scan completes.
type ScanResultMsg struct {
	Calls     []model.ScheduledCall
	Emitted   int
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the API rejects the token.
type AuthErrorMsg struct {
	Message string
}

// ResolveResultMsg is a tea.Msg sent when a complete or delete finishes.
type ResolveResultMsg struct {
	CallID string
	Action string
	Error  error
}

// CallsSource is the scheduled-calls API. *calls.Client satisfies it.
type CallsSource interface {
	List(ctx context.Context, includeCompleted bool) ([]model.ScheduledCall, error)
	Complete(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Scanner raises overdue alerts and forgets them once a call is resolved.
// *notify.Center satisfies it.
type Scanner interface {
	Scan(items []model.ScheduledCall, now time.Time) []model.NotificationInput
	ClearAlerted(id string)
}

// fetchTimeout is the maximum time allowed for a single API operation.
const fetchTimeout = 30 * time.Second

// Options configures a Poller.
type Options struct {
	// Interval re-runs the fetch periodically. Zero fetches only on
	// Start and on Refresh.
	Interval time.Duration

	Logger zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Poller fetches scheduled calls and runs the overdue scan over every
// fresh batch. It decides when scans happen: once on Start, on every
// Refresh, and every Interval when one is set.
type Poller struct {
	source   CallsSource
	scanner  Scanner
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger

	resultCh  chan ScanResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}

	mu      gosync.Mutex
	running bool
	status  SyncStatus
}

// New creates a new Poller.
func New(source CallsSource, scanner Scanner, opts Options) *Poller {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Poller{
		source:    source,
		scanner:   scanner,
		interval:  opts.Interval,
		now:       opts.Now,
		logger:    opts.Logger.With().Str("component", "poller").Logger(),
		resultCh:  make(chan ScanResultMsg, 16),
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the polling goroutine and returns a tea.Cmd that
// delivers the next ScanResultMsg. Later calls return nil.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()
	return p.waitForResult()
}

// Stop halts the polling goroutine and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	<-p.done
}

// Refresh triggers an immediate fetch. Requests made while one is
// already queued are coalesced.
func (p *Poller) Refresh() tea.Cmd {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
	return nil
}

// Status returns the state of the last fetch.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Results exposes the result stream for callers outside Bubble Tea.
func (p *Poller) Results() <-chan ScanResultMsg {
	return p.resultCh
}

func (p *Poller) loop() {
	defer close(p.done)

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	p.fetchAndScan()

	for {
		select {
		case <-p.stopCh:
			return
		case <-tick:
			p.fetchAndScan()
		case <-p.triggerCh:
			p.fetchAndScan()
		}
	}
}

// fetchAndScan performs a single fetch, hands the batch to the scanner
// and sends a ScanResultMsg on the result channel.
func (p *Poller) fetchAndScan() {
	p.setStatus(SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	items, err := p.source.List(ctx, false)
	if err != nil {
		p.setStatus(SyncError, err)
		p.logger.Warn().Err(err).Msg("fetching scheduled calls")

		msg := ScanResultMsg{Error: err}
		if calls.IsAuthError(err) {
			msg.AuthError = &AuthErrorMsg{
				Message: "API token rejected. Run with --login to set a new one.",
			}
		}
		p.sendResult(msg)
		return
	}

	emitted := p.scanner.Scan(items, p.now())
	p.setStatus(SyncIdle, nil)
	p.logger.Debug().Int("calls", len(items)).Int("emitted", len(emitted)).Msg("scheduled calls scanned")
	p.sendResult(ScanResultMsg{Calls: items, Emitted: len(emitted)})
}

// CompleteCall marks the call done and, on success, releases its overdue
// alert so the call can alert again if it ever reappears overdue.
func (p *Poller) CompleteCall(ctx context.Context, id string) error {
	if err := p.source.Complete(ctx, id); err != nil {
		return err
	}
	p.scanner.ClearAlerted(id)
	return nil
}

// DeleteCall removes the call and releases its overdue alert.
func (p *Poller) DeleteCall(ctx context.Context, id string) error {
	if err := p.source.Delete(ctx, id); err != nil {
		return err
	}
	p.scanner.ClearAlerted(id)
	return nil
}

// Complete returns a tea.Cmd running CompleteCall.
func (p *Poller) Complete(id string) tea.Cmd {
	return p.resolve(id, "complete", p.CompleteCall)
}

// Delete returns a tea.Cmd running DeleteCall.
func (p *Poller) Delete(id string) tea.Cmd {
	return p.resolve(id, "delete", p.DeleteCall)
}

func (p *Poller) resolve(id, action string, fn func(context.Context, string) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()
		err := fn(ctx, id)
		if err != nil {
			p.logger.Warn().Err(err).Str("call_id", id).Str("action", action).Msg("resolving call")
		} else {
			p.logger.Info().Str("call_id", id).Str("action", action).Msg("call resolved")
		}
		return ResolveResultMsg{CallID: id, Action: action, Error: err}
	}
}

func (p *Poller) setStatus(state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = p.now()
	}
}

// sendResult sends a ScanResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg ScanResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
func (p *Poller) waitForResult() tea.Cmd {
	return func() tea.Msg {
		result, ok := <-p.resultCh
		if !ok {
			return nil
		}
		return result
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next scan result.
// Call it after handling a ScanResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
