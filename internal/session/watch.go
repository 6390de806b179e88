package session

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/quickcheck/internal/event"
	"github.com/Iron-Ham/quickcheck/internal/logging"
)

// watchDebounce collapses the create/rename/chmod bursts of an atomic write.
const watchDebounce = 50 * time.Millisecond

// LockWatcher publishes an event.LockLostEvent when another session
// overwrites the lock held by token. A lock that is deleted is not reported;
// that is what a session does itself on submit or cancel.
type LockWatcher struct {
	store   *FileLockStore
	userID  string
	token   string
	path    string
	bus     *event.Bus
	logger  *logging.Logger
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	held string // draft ID last seen under token

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// Watch starts watching userID's lock on behalf of the session holding
// token. Call Stop to release the watcher.
func (s *FileLockStore) Watch(userID, token string, bus *event.Bus) (*LockWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Atomic renames replace the file, so watch the directory.
	if err := fw.Add(s.dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &LockWatcher{
		store:   s,
		userID:  userID,
		token:   token,
		path:    s.Path(userID),
		bus:     bus,
		logger:  s.logger.WithUser(userID).WithComponent("lockwatch"),
		watcher: fw,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	w.check()
	go w.loop()
	return w, nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *LockWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		_ = w.watcher.Close()
	})
	<-w.doneCh
}

// Held returns the draft ID this session was last seen holding.
func (w *LockWatcher) Held() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.held
}

func (w *LockWatcher) loop() {
	defer close(w.doneCh)

	debounce := time.NewTimer(0)
	<-debounce.C
	defer debounce.Stop()

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			debounce.Reset(watchDebounce)

		case <-debounce.C:
			w.check()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("lock watcher error", "error", err)
		}
	}
}

func (w *LockWatcher) check() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	lock, err := w.store.Load(ctx, w.userID)
	if err != nil {
		w.logger.Debug("ignoring unreadable lock", "error", err)
		return
	}

	w.mu.Lock()
	var lost event.Event
	switch {
	case lock == nil:
		w.held = ""
	case lock.SessionToken == w.token:
		w.held = lock.DraftID
	case w.held != "":
		lost = event.NewLockLostEvent(w.userID, w.held, lock.DraftID)
		w.held = ""
	}
	w.mu.Unlock()

	if lost != nil {
		w.logger.Info("session lock taken over by another session", "new_draft_id", lock.DraftID)
		w.bus.Publish(lost)
	}
}
