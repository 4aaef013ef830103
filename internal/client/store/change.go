package store

import "github.com/dmitrijs2005/fieldsync/internal/client/models"

// ChangeOp describes what happened to a record.
type ChangeOp string

const (
	ChangeLocalWrite ChangeOp = "local_write"
	ChangeIngest     ChangeOp = "ingest"
	ChangeSynced     ChangeOp = "synced"
	ChangeConflict   ChangeOp = "conflict"
	ChangeResolved   ChangeOp = "resolved"
	ChangeUploaded   ChangeOp = "uploaded"
)

// Change is delivered to OnChange listeners after a write commits.
type Change struct {
	Kind         models.RecordKind
	Id           string
	InspectionId string
	Op           ChangeOp
}

// OnChange registers fn to be called after every committed write that
// touched a record. Listeners run synchronously on the writing goroutine
// and must not block. The returned function unregisters fn.
func (s *Store) OnChange(fn func(Change)) (unsubscribe func()) {
	s.lmu.Lock()
	id := s.nextLid
	s.nextLid++
	s.listeners[id] = fn
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Store) notify(changes []Change) {
	if len(changes) == 0 {
		return
	}

	s.lmu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()

	for _, c := range changes {
		for _, fn := range fns {
			fn(c)
		}
	}
}
