package drafttest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// Backend operation names used by FakeBackend counters, errors and gates.
const (
	OpCreate          = "create"
	OpUpdate          = "update"
	OpFetchUnfinished = "fetch_unfinished"
	OpFetchByID       = "fetch_by_id"
	OpDelete          = "delete"
	OpArchive         = "archive"
	OpSubmit          = "submit"
)

// Write is one recorded Create, Update, Archive or Submit call.
type Write struct {
	Op      string
	ID      string
	Title   string
	Payload []byte
}

// FakeBackend is an in-memory draft.Backend.
type FakeBackend struct {
	// SingleActive makes Create fail with *draft.ActiveDraftError when the
	// user already has an unfinished draft.
	SingleActive bool

	mu      sync.Mutex
	records map[string]*draft.Record
	nextID  int
	calls   map[string]int
	writes  []Write
	errs    map[string]error
	once    map[string]error
	gates   map[string]*Gate
	now     func() time.Time
}

// NewFakeBackend creates an empty FakeBackend. A nil now uses time.Now.
func NewFakeBackend(now func() time.Time) *FakeBackend {
	if now == nil {
		now = time.Now
	}
	return &FakeBackend{
		records: make(map[string]*draft.Record),
		calls:   make(map[string]int),
		errs:    make(map[string]error),
		once:    make(map[string]error),
		gates:   make(map[string]*Gate),
		now:     now,
	}
}

// Gate blocks a backend operation until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered receives once per call that reached the gate.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release unblocks current and future calls.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

// Block makes calls to op wait until the returned gate is released.
func (b *FakeBackend) Block(op string) *Gate {
	g := &Gate{entered: make(chan struct{}, 64), release: make(chan struct{})}
	b.mu.Lock()
	b.gates[op] = g
	b.mu.Unlock()
	return g
}

// SetError makes every call to op fail with err until cleared with a nil err.
func (b *FakeBackend) SetError(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.errs, op)
		return
	}
	b.errs[op] = err
}

// FailNext makes the next call to op fail with err.
func (b *FakeBackend) FailNext(op string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.once[op] = err
}

// Calls returns how many times op was invoked.
func (b *FakeBackend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// Writes returns the recorded writes for op, oldest first. An empty op
// returns all writes.
func (b *FakeBackend) Writes(op string) []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Write
	for _, w := range b.writes {
		if op == "" || w.Op == op {
			out = append(out, w)
		}
	}
	return out
}

// Put stores rec as-is, replacing any record with the same ID.
func (b *FakeBackend) Put(rec draft.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec.State == "" {
		rec.State = draft.RecordDraft
	}
	b.records[rec.ID] = &rec
}

// Record returns a copy of the stored record.
func (b *FakeBackend) Record(id string) (draft.Record, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[id]
	if !ok {
		return draft.Record{}, false
	}
	return *rec, true
}

// Len returns the number of stored records in any state.
func (b *FakeBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// enter counts the call, waits on its gate and returns any injected error.
func (b *FakeBackend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	gate := b.gates[op]
	err := b.errs[op]
	if onceErr, ok := b.once[op]; ok {
		err = onceErr
		delete(b.once, op)
	}
	b.mu.Unlock()

	if gate != nil {
		select {
		case gate.entered <- struct{}{}:
		default:
		}
		select {
		case <-gate.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (b *FakeBackend) Create(ctx context.Context, userID, title string, payload []byte) (string, error) {
	if err := b.enter(ctx, OpCreate); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SingleActive {
		for _, rec := range b.records {
			if rec.UserID == userID && rec.Unfinished() {
				return "", &draft.ActiveDraftError{UserID: userID, DraftID: rec.ID}
			}
		}
	}

	b.nextID++
	id := fmt.Sprintf("draft-%d", b.nextID)
	now := b.now()
	b.records[id] = &draft.Record{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Payload:   slices.Clone(payload),
		State:     draft.RecordDraft,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.writes = append(b.writes, Write{Op: OpCreate, ID: id, Title: title, Payload: slices.Clone(payload)})
	return id, nil
}

func (b *FakeBackend) Update(ctx context.Context, id, title string, payload []byte) error {
	if err := b.enter(ctx, OpUpdate); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, err := b.unfinishedLocked(id)
	if err != nil {
		return err
	}
	rec.Title = title
	rec.Payload = slices.Clone(payload)
	rec.Version++
	rec.UpdatedAt = b.now()
	b.writes = append(b.writes, Write{Op: OpUpdate, ID: id, Title: title, Payload: slices.Clone(payload)})
	return nil
}

func (b *FakeBackend) FetchUnfinishedForUser(ctx context.Context, userID string) ([]draft.Record, error) {
	if err := b.enter(ctx, OpFetchUnfinished); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []draft.Record
	for _, rec := range b.records {
		if rec.UserID == userID && rec.Unfinished() {
			out = append(out, *rec)
		}
	}
	slices.SortFunc(out, func(x, y draft.Record) int {
		return y.UpdatedAt.Compare(x.UpdatedAt)
	})
	return out, nil
}

func (b *FakeBackend) FetchByID(ctx context.Context, id string) (*draft.Record, error) {
	if err := b.enter(ctx, OpFetchByID); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, err := b.unfinishedLocked(id)
	if err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

func (b *FakeBackend) Delete(ctx context.Context, id string) error {
	if err := b.enter(ctx, OpDelete); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.records[id]; !ok {
		return errors.NewNotFoundError("draft", id)
	}
	delete(b.records, id)
	return nil
}

func (b *FakeBackend) Archive(ctx context.Context, id string, payload []byte) error {
	if err := b.enter(ctx, OpArchive); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, err := b.unfinishedLocked(id)
	if err != nil {
		return err
	}
	if payload != nil {
		rec.Payload = slices.Clone(payload)
	}
	rec.State = draft.RecordArchived
	rec.UpdatedAt = b.now()
	b.writes = append(b.writes, Write{Op: OpArchive, ID: id, Payload: slices.Clone(payload)})
	return nil
}

func (b *FakeBackend) Submit(ctx context.Context, id, title string, payload []byte) error {
	if err := b.enter(ctx, OpSubmit); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, err := b.unfinishedLocked(id)
	if err != nil {
		return err
	}
	rec.Title = title
	rec.Payload = slices.Clone(payload)
	rec.State = draft.RecordSubmitted
	rec.Version++
	rec.UpdatedAt = b.now()
	b.writes = append(b.writes, Write{Op: OpSubmit, ID: id, Title: title, Payload: slices.Clone(payload)})
	return nil
}

func (b *FakeBackend) unfinishedLocked(id string) (*draft.Record, error) {
	rec, ok := b.records[id]
	if !ok || !rec.Unfinished() {
		return nil, errors.NewNotFoundError("draft", id)
	}
	return rec, nil
}
