package batch

import (
	"context"
	"time"

	"github.com/CrispStrobe/filen-go/internal/logging"
)

const (
	// saveEveryChunks and saveEveryInterval throttle mid-transfer saves:
	// whichever threshold is crossed first triggers one.
	saveEveryChunks   = 10
	saveEveryInterval = 5 * time.Second
)

// saver persists a batch's state: unconditionally on every status
// transition, throttled during chunk traffic. Saving is best effort; a
// failed save costs resume granularity, not correctness.
type saver struct {
	store *StateStore
	id    string
	st    *State
	log   logging.Logger

	chunksSinceSave int
	lastSave        time.Time
}

func newSaver(store *StateStore, id string, st *State, log logging.Logger) *saver {
	return &saver{store: store, id: id, st: st, log: log, lastSave: timeNow()}
}

// transition sets a task's status and saves immediately.
func (s *saver) transition(ctx context.Context, t *Task, status TaskStatus) {
	t.Status = status
	s.save(ctx)
}

// chunk notes one transferred chunk and saves when a threshold is crossed.
func (s *saver) chunk(ctx context.Context) {
	s.chunksSinceSave++
	if s.chunksSinceSave >= saveEveryChunks || timeNow().Sub(s.lastSave) >= saveEveryInterval {
		s.save(ctx)
	}
}

func (s *saver) save(ctx context.Context) {
	if err := s.store.Save(s.id, s.st); err != nil {
		s.log.Warn(ctx, "could not persist batch state", "batch_id", s.id, "error", err)
	}
	s.chunksSinceSave = 0
	s.lastSave = timeNow()
}
