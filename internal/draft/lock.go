package draft

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/quickcheck/internal/errors"
)

// SessionLock records which draft a session owns for a user.
type SessionLock struct {
	OwnerUserID  string    `json:"owner_user_id"`
	DraftID      string    `json:"draft_id"`
	SessionToken string    `json:"session_token"`
	AcquiredAt   time.Time `json:"acquired_at"`
}

// LockStore persists at most one SessionLock per user.
type LockStore interface {
	// Load returns the user's lock, or nil if there is none.
	Load(ctx context.Context, userID string) (*SessionLock, error)
	// Save replaces the lock for lock.OwnerUserID.
	Save(ctx context.Context, lock *SessionLock) error
	// Delete removes the user's lock. Deleting a missing lock is not an error.
	Delete(ctx context.Context, userID string) error
}

// MemoryLockStore is a LockStore held in process memory.
type MemoryLockStore struct {
	mu    sync.Mutex
	locks map[string]SessionLock
}

// NewMemoryLockStore creates an empty MemoryLockStore.
func NewMemoryLockStore() *MemoryLockStore {
	return &MemoryLockStore{locks: make(map[string]SessionLock)}
}

func (s *MemoryLockStore) Load(_ context.Context, userID string) (*SessionLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[userID]
	if !ok {
		return nil, nil
	}
	return &lock, nil
}

func (s *MemoryLockStore) Save(_ context.Context, lock *SessionLock) error {
	if lock == nil || lock.OwnerUserID == "" {
		return errors.NewLockError("lock has no owner", errors.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks[lock.OwnerUserID] = *lock
	return nil
}

func (s *MemoryLockStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, userID)
	return nil
}

// Registry is one session's view of a user's lock. The session token is
// generated once per Registry.
type Registry struct {
	store  LockStore
	userID string
	token  string
	clock  Clock
}

// NewRegistry creates a Registry for userID with a fresh session token.
func NewRegistry(store LockStore, userID string, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock()
	}
	return &Registry{
		store:  store,
		userID: userID,
		token:  uuid.NewString(),
		clock:  clock,
	}
}

// UserID returns the user this registry acts for.
func (r *Registry) UserID() string { return r.userID }

// Token returns this session's token.
func (r *Registry) Token() string { return r.token }

// Acquire writes a lock naming draftID and this session. Any prior lock for
// the user is overwritten.
func (r *Registry) Acquire(ctx context.Context, draftID string) (*SessionLock, error) {
	lock := &SessionLock{
		OwnerUserID:  r.userID,
		DraftID:      draftID,
		SessionToken: r.token,
		AcquiredAt:   r.clock.Now().UTC(),
	}
	if err := r.store.Save(ctx, lock); err != nil {
		return nil, err
	}
	return lock, nil
}

// Read returns the user's current lock, or nil.
func (r *Registry) Read(ctx context.Context) (*SessionLock, error) {
	return r.store.Load(ctx, r.userID)
}

// Release deletes the user's lock.
func (r *Registry) Release(ctx context.Context) error {
	return r.store.Delete(ctx, r.userID)
}

// Owns reports whether the stored lock names draftID and this session.
func (r *Registry) Owns(ctx context.Context, draftID string) (bool, error) {
	lock, err := r.Read(ctx)
	if err != nil {
		return false, err
	}
	return lock != nil && lock.DraftID == draftID && lock.SessionToken == r.token, nil
}
