package records

import (
	"errors"
	"fmt"

	"nftfi/storage"
)

type revision struct {
	id           int
	journalIndex int
}

// Space is the journal shared by every table written during one operation.
// While a snapshot is open each write records an undo step; reverting replays
// them newest first against memory and the backing database. Snapshots nest.
type Space struct {
	db        storage.Database
	journal   []func() error
	revisions []revision
	nextID    int
}

// NewSpace wraps db. A nil database keeps every table memory-only.
func NewSpace(db storage.Database) *Space {
	return &Space{db: db}
}

// DB returns the backing database, possibly nil.
func (s *Space) DB() storage.Database { return s.db }

// Snapshot opens a journaled section and returns its id.
func (s *Space) Snapshot() int {
	id := s.nextID
	s.nextID++
	s.revisions = append(s.revisions, revision{id: id, journalIndex: len(s.journal)})
	return id
}

func (s *Space) find(id int) (int, error) {
	for i := len(s.revisions) - 1; i >= 0; i-- {
		if s.revisions[i].id == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("records: snapshot %d is not open", id)
}

// RevertToSnapshot undoes every write recorded after id was taken and closes
// id together with any snapshot nested inside it.
func (s *Space) RevertToSnapshot(id int) error {
	idx, err := s.find(id)
	if err != nil {
		return err
	}
	start := s.revisions[idx].journalIndex
	var errs []error
	for i := len(s.journal) - 1; i >= start; i-- {
		if err := s.journal[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.journal = s.journal[:start]
	s.revisions = s.revisions[:idx]
	return errors.Join(errs...)
}

// Commit closes id and its nested snapshots keeping their writes. Once the
// outermost snapshot is committed the journal is dropped.
func (s *Space) Commit(id int) error {
	idx, err := s.find(id)
	if err != nil {
		return err
	}
	s.revisions = s.revisions[:idx]
	if len(s.revisions) == 0 {
		s.journal = nil
	}
	return nil
}

// Active reports whether any snapshot is open.
func (s *Space) Active() bool { return len(s.revisions) > 0 }

func (s *Space) record(undo func() error) {
	if len(s.revisions) > 0 {
		s.journal = append(s.journal, undo)
	}
}

func (s *Space) put(key, value []byte) error {
	if s.db == nil {
		return nil
	}
	return s.db.Put(key, value)
}

func (s *Space) delete(key []byte) error {
	if s.db == nil {
		return nil
	}
	return s.db.Delete(key)
}
