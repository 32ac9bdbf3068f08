package sync

import (
	"context"
	"fmt"
	"sort"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/nhle/agora/internal/api"
	"github.com/nhle/agora/internal/cache"
)

// SyncState represents the current state of a target refresh.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

// SyncStatus holds the refresh state for a single target.
type SyncStatus struct {
	Name     string
	State    SyncState
	LastSync time.Time
	Error    error
}

// SyncResultMsg is a tea.Msg sent when a refresh completes.
type SyncResultMsg struct {
	Name      string
	Key       cache.Key
	Result    cache.Result
	Error     error
	AuthError *AuthErrorMsg
}

// AuthErrorMsg is a tea.Msg sent when the backend rejects the session.
type AuthErrorMsg struct {
	Name    string
	Message string
}

// Target is a cache key refreshed on an interval. It backs up realtime
// delivery: if a push is lost, the next tick still brings the data in.
type Target struct {
	Name     string
	Key      cache.Key
	Interval time.Duration
}

// fetchTimeout is the maximum time allowed for a single refresh.
const fetchTimeout = 30 * time.Second

const defaultInterval = 60 * time.Second

// History persists the time of each target's last successful refresh.
// store.Store satisfies it.
type History interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithHistory restores and records last-sync times in h.
func WithHistory(h History) Option {
	return func(p *Poller) { p.history = h }
}

// WithLogger sets the logger used for history failures.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poller) { p.logger = l }
}

// Poller orchestrates background refreshes of registered cache keys.
type Poller struct {
	cache    *cache.Cache
	history  History
	logger   *zap.Logger
	targets  []Target
	statuses map[string]*SyncStatus
	triggers map[string]chan struct{}
	resultCh chan SyncResultMsg
	stopCh   chan struct{}
	mu       gosync.Mutex
	running  bool
}

// New creates a new Poller over the given cache.
func New(c *cache.Cache, opts ...Option) *Poller {
	p := &Poller{
		cache:    c,
		logger:   zap.NewNop(),
		statuses: make(map[string]*SyncStatus),
		triggers: make(map[string]chan struct{}),
		resultCh: make(chan SyncResultMsg, 16),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// HistoryKey is the settings key holding a target's last successful sync.
func HistoryKey(name string) string {
	return "sync." + name + ".last"
}

// Register adds a target. Targets registered after Start are not polled
// until the next Start.
func (p *Poller) Register(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t.Interval <= 0 {
		t.Interval = defaultInterval
	}
	p.targets = append(p.targets, t)
	p.statuses[t.Name] = &SyncStatus{Name: t.Name, State: SyncIdle, LastSync: p.lastSync(t.Name)}
	p.triggers[t.Name] = make(chan struct{}, 1)
}

func (p *Poller) lastSync(name string) time.Time {
	if p.history == nil {
		return time.Time{}
	}
	raw, ok, err := p.history.GetSetting(context.Background(), HistoryKey(name))
	if err != nil {
		p.logger.Warn("reading sync history failed", zap.String("target", name), zap.Error(err))
		return time.Time{}
	}
	if !ok {
		return time.Time{}
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		p.logger.Debug("ignoring malformed sync history", zap.String("target", name), zap.String("value", raw))
		return time.Time{}
	}
	return at
}

// Start returns a tea.Cmd that starts all polling goroutines and
// subscribes to results. The returned command waits on the result
// channel and returns SyncResultMsg messages to the Bubble Tea runtime.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})
	targets := append([]Target(nil), p.targets...)
	stop := p.stopCh
	p.mu.Unlock()

	for _, t := range targets {
		go p.poll(t, stop)
	}

	return p.waitForResult()
}

// Stop halts all polling goroutines.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	close(p.stopCh)
	p.running = false
}

// RefreshAll triggers an immediate refresh of every target.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.triggers {
		select {
		case ch <- struct{}{}:
		default:
			// A refresh is already pending.
		}
	}
}

// RefreshTarget triggers an immediate refresh of one target.
func (p *Poller) RefreshTarget(name string) {
	p.mu.Lock()
	ch, ok := p.triggers[name]
	p.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// GetStatuses returns the current status of all targets, by name.
func (p *Poller) GetStatuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.statuses))
	for _, s := range p.statuses {
		statuses = append(statuses, *s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// poll runs the refresh loop for a single target.
func (p *Poller) poll(t Target, stop <-chan struct{}) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	p.mu.Lock()
	trigger := p.triggers[t.Name]
	p.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.refresh(t)
		case <-trigger:
			p.refresh(t)
		}
	}
}

// refresh invalidates the target's key, which refetches it when a view is
// subscribed, and reports the resulting entry state.
func (p *Poller) refresh(t Target) {
	p.setStatus(t.Name, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	p.cache.Invalidate(ctx, t.Key)
	res := p.cache.Peek(t.Key)

	if res.Err != nil {
		p.setStatus(t.Name, SyncError, res.Err)

		if api.IsUnauthorized(res.Err) {
			p.sendResult(SyncResultMsg{
				Name:   t.Name,
				Key:    t.Key,
				Result: res,
				Error:  res.Err,
				AuthError: &AuthErrorMsg{
					Name:    t.Name,
					Message: fmt.Sprintf("%s: session expired. Press 'L' to sign in again.", t.Name),
				},
			})
			return
		}

		p.sendResult(SyncResultMsg{Name: t.Name, Key: t.Key, Result: res, Error: res.Err})
		return
	}

	p.setStatus(t.Name, SyncIdle, nil)
	p.record(ctx, t.Name)
	p.sendResult(SyncResultMsg{Name: t.Name, Key: t.Key, Result: res})
}

// record writes the target's last-sync time to the history.
func (p *Poller) record(ctx context.Context, name string) {
	if p.history == nil {
		return
	}
	p.mu.Lock()
	at := p.statuses[name].LastSync
	p.mu.Unlock()

	if err := p.history.SetSetting(ctx, HistoryKey(name), at.UTC().Format(time.RFC3339Nano)); err != nil {
		p.logger.Warn("recording sync history failed", zap.String("target", name), zap.Error(err))
	}
}

// setStatus updates the status of a target.
func (p *Poller) setStatus(name string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[name]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult sends a SyncResultMsg on the result channel without blocking.
func (p *Poller) sendResult(msg SyncResultMsg) {
	select {
	case p.resultCh <- msg:
	default:
		// Drop if channel is full to avoid blocking the poller
	}
}

// waitForResult returns a tea.Cmd that waits for the next result from
// the result channel.
// The command returns nil once the poller is stopped.
func (p *Poller) waitForResult() tea.Cmd {
	p.mu.Lock()
	stop := p.stopCh
	running := p.running
	p.mu.Unlock()

	if !running {
		return nil
	}
	return func() tea.Msg {
		select {
		case result := <-p.resultCh:
			return result
		case <-stop:
			return nil
		}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next refresh
// result. Call it after handling a SyncResultMsg to keep listening.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return p.waitForResult()
}
