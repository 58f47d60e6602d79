package progress

import (
	"context"
	"sync"
	"time"

	"github.com/viant/patchtx/internal/clock"
	"github.com/viant/patchtx/model"
)

// Delta represents an incremental counter change emitted by a transaction
// phase. Fields are signed.
type Delta struct {
	Total     int
	Validated int
	Applied   int
	Restored  int
	Failed    int
}

// Counters is a point-in-time copy of a tracker.
type Counters struct {
	TransactionID string
	State         model.State
	StartedAt     time.Time

	TotalFiles     int
	ValidatedFiles int
	AppliedFiles   int
	RestoredFiles  int
	FailedFiles    int
}

// Progress keeps counters for a single transaction. It is safe for concurrent use.
type Progress struct {
	mu       sync.Mutex
	counters Counters
	onChange func(Counters)
}

// Update applies the supplied delta. The onChange callback, if any, is
// invoked with a copy outside the critical section.
func (p *Progress) Update(d Delta) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.counters.TotalFiles += d.Total
	p.counters.ValidatedFiles += d.Validated
	p.counters.AppliedFiles += d.Applied
	p.counters.RestoredFiles += d.Restored
	p.counters.FailedFiles += d.Failed
	snapshot := p.counters
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// SetState records a state machine transition.
func (p *Progress) SetState(state model.State) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.counters.State = state
	snapshot := p.counters
	cb := p.onChange
	p.mu.Unlock()

	if cb != nil {
		cb(snapshot)
	}
}

// Snapshot returns a copy of the counters.
func (p *Progress) Snapshot() Counters {
	if p == nil {
		return Counters{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// OnChange registers a callback invoked after every change; nil disables it.
func (p *Progress) OnChange(cb func(Counters)) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.onChange = cb
	p.mu.Unlock()
}

// ----------------------------------------------------------------------------
// Context helpers
// ----------------------------------------------------------------------------

type trackerKeyT struct{}

var trackerKey trackerKeyT

// WithNewTracker creates a tracker for transactionID, embeds it in a derived
// context and returns both.
func WithNewTracker(ctx context.Context, transactionID string, onChange func(Counters)) (context.Context, *Progress) {
	if ctx == nil {
		ctx = context.Background()
	}
	tr := &Progress{
		counters: Counters{TransactionID: transactionID, State: model.StateIdle, StartedAt: clock.Now()},
		onChange: onChange,
	}
	return context.WithValue(ctx, trackerKey, tr), tr
}

// FromContext extracts the tracker from ctx.
func FromContext(ctx context.Context) (*Progress, bool) {
	if ctx == nil {
		return nil, false
	}
	tr, ok := ctx.Value(trackerKey).(*Progress)
	return tr, ok
}

// GetSnapshot combines FromContext and Snapshot.
func GetSnapshot(ctx context.Context) (Counters, bool) {
	if tr, ok := FromContext(ctx); ok {
		return tr.Snapshot(), true
	}
	return Counters{}, false
}

// UpdateCtx applies the delta to the tracker in ctx, if any.
func UpdateCtx(ctx context.Context, d Delta) {
	if tr, ok := FromContext(ctx); ok {
		tr.Update(d)
	}
}

// SetStateCtx records a transition on the tracker in ctx, if any.
func SetStateCtx(ctx context.Context, state model.State) {
	if tr, ok := FromContext(ctx); ok {
		tr.SetState(state)
	}
}
