package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lumberhq/lumberview/internal/model"
	"github.com/lumberhq/lumberview/internal/sqlworker"
)

// Mode selects how a response's rows are reshaped. It travels with the
// pending entry rather than being encoded into the request id, so dispatch
// is decided by the tag, never by string inspection.
type Mode int

const (
	// ModeFlat maps each row to one record keyed by the returned columns.
	ModeFlat Mode = iota

	// ModeGrouped folds the log/custom join back into nested LogRecords,
	// grouping rows by uid.
	ModeGrouped
)

// ErrClosed is returned for queries left pending when the store shuts down.
var ErrClosed = errors.New("broker: store closed")

type result struct {
	results []sqlworker.ResultSet
	err     error
}

type pendingQuery struct {
	id   uint64
	mode Mode
	ch   chan result
}

// Future is the eventual outcome of one submitted query.
type Future struct {
	mode Mode
	ch   chan result
}

// Broker turns the store worker's message channel into correlated
// asynchronous queries. Each request gets a fresh process-unique id; the
// matching response resolves exactly one pending entry and removes it.
type Broker struct {
	requests chan<- sqlworker.Request

	mu      sync.Mutex
	pending map[uint64]*pendingQuery
	closed  bool
	nextID  atomic.Uint64
}

// New creates a broker over the worker's channels and starts its response
// dispatch goroutine, which runs until the response channel closes.
func New(requests chan<- sqlworker.Request, responses <-chan sqlworker.Response) *Broker {
	b := &Broker{
		requests: requests,
		pending:  make(map[uint64]*pendingQuery),
	}
	// IDs start above the reserved open id so no exec ever collides with it.
	b.nextID.Store(sqlworker.OpenID)
	go b.dispatch(responses)
	return b
}

func (b *Broker) dispatch(responses <-chan sqlworker.Response) {
	for resp := range responses {
		b.mu.Lock()
		p, ok := b.pending[resp.ID]
		if ok {
			delete(b.pending, resp.ID)
		}
		b.mu.Unlock()
		if !ok {
			// Stale or foreign id: already resolved elsewhere. Expected
			// during streaming, intentionally invisible.
			continue
		}

		if resp.Err != "" {
			p.ch <- result{err: fmt.Errorf("broker: store: %s", resp.Err)}
			continue
		}
		p.ch <- result{results: resp.Results}
	}

	// Store is gone; reject everything still in flight.
	b.mu.Lock()
	for id, p := range b.pending {
		delete(b.pending, id)
		p.ch <- result{err: ErrClosed}
	}
	b.closed = true
	b.mu.Unlock()
}

// Open initializes the store. It must complete before any Submit.
func (b *Broker) Open(ctx context.Context) error {
	p := &pendingQuery{id: sqlworker.OpenID, mode: ModeFlat, ch: make(chan result, 1)}
	if err := b.register(p); err != nil {
		return err
	}
	b.requests <- sqlworker.Request{ID: sqlworker.OpenID, Action: sqlworker.ActionOpen}
	f := &Future{mode: p.mode, ch: p.ch}
	return f.Err(ctx)
}

// Submit sends one statement to the store and returns its Future without
// waiting. The caller decides when (and whether) to await it.
func (b *Broker) Submit(mode Mode, sqlText string, params []any) *Future {
	id := b.nextID.Add(1)
	p := &pendingQuery{id: id, mode: mode, ch: make(chan result, 1)}
	if err := b.register(p); err != nil {
		p.ch <- result{err: err}
		return &Future{mode: mode, ch: p.ch}
	}
	b.requests <- sqlworker.Request{ID: id, Action: sqlworker.ActionExec, SQL: sqlText, Params: params}
	return &Future{mode: mode, ch: p.ch}
}

func (b *Broker) register(p *pendingQuery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if _, exists := b.pending[p.id]; exists {
		return fmt.Errorf("broker: id %d already pending", p.id)
	}
	b.pending[p.id] = p
	return nil
}

// Exec runs a statement and waits for completion, discarding any rows.
func (b *Broker) Exec(ctx context.Context, sqlText string, params ...any) error {
	return b.Submit(ModeFlat, sqlText, params).Err(ctx)
}

// Query runs a row-returning statement in flat mode.
func (b *Broker) Query(ctx context.Context, sqlText string, params ...any) ([]map[string]any, error) {
	return b.Submit(ModeFlat, sqlText, params).Rows(ctx)
}

// QueryLogs runs the log/custom join in grouped mode.
func (b *Broker) QueryLogs(ctx context.Context, sqlText string, params ...any) ([]model.LogRecord, error) {
	return b.Submit(ModeGrouped, sqlText, params).Logs(ctx)
}

// PendingCount reports the number of in-flight queries.
func (b *Broker) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (f *Future) wait(ctx context.Context) (result, error) {
	select {
	case res := <-f.ch:
		return res, res.err
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}

// Err waits for completion and returns the execution error, if any.
func (f *Future) Err(ctx context.Context) error {
	_, err := f.wait(ctx)
	return err
}

// Rows waits for completion and reshapes the result in flat mode.
// A query that returns no rows yields an empty, non-nil slice.
func (f *Future) Rows(ctx context.Context) ([]map[string]any, error) {
	res, err := f.wait(ctx)
	if err != nil {
		return nil, err
	}
	return flattenRows(res.results), nil
}

// Logs waits for completion and reshapes the result in grouped mode.
// Only meaningful for futures submitted with ModeGrouped.
func (f *Future) Logs(ctx context.Context) ([]model.LogRecord, error) {
	res, err := f.wait(ctx)
	if err != nil {
		return nil, err
	}
	if f.mode != ModeGrouped {
		return nil, fmt.Errorf("broker: Logs on a %v future", f.mode)
	}
	return groupLogs(res.results), nil
}

func (m Mode) String() string {
	switch m {
	case ModeFlat:
		return "flat"
	case ModeGrouped:
		return "grouped"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}
