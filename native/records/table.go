package records

import (
	"encoding/binary"
	"fmt"
)

// Row is implemented by every record kept in a Table.
type Row[T any] interface {
	Clone() T
	SetID(id uint64)
}

// Codec converts rows to and from their persisted form.
type Codec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// Table is an append-only, id-indexed collection. Ids start at 0, are assigned
// sequentially and never reused. Rows handed in or out are always clones.
type Table[T Row[T]] struct {
	space  *Space
	prefix []byte
	codec  Codec[T]
	rows   []T
}

// NewTable creates an empty table storing rows under prefix. Call Load to
// restore persisted rows.
func NewTable[T Row[T]](space *Space, prefix string, codec Codec[T]) *Table[T] {
	return &Table[T]{space: space, prefix: []byte(prefix), codec: codec}
}

func (t *Table[T]) key(id uint64) []byte {
	key := make([]byte, len(t.prefix)+8)
	copy(key, t.prefix)
	binary.BigEndian.PutUint64(key[len(t.prefix):], id)
	return key
}

// Load reads every persisted row under the table prefix.
func (t *Table[T]) Load() error {
	db := t.space.DB()
	if db == nil {
		return nil
	}
	return db.Iterate(t.prefix, func(key, value []byte) error {
		id := binary.BigEndian.Uint64(key[len(t.prefix):])
		if id != uint64(len(t.rows)) {
			return fmt.Errorf("records: %s gap at id %d", t.prefix, id)
		}
		row, err := t.codec.Decode(value)
		if err != nil {
			return fmt.Errorf("records: decode %s%d: %w", t.prefix, id, err)
		}
		row.SetID(id)
		t.rows = append(t.rows, row)
		return nil
	})
}

func (t *Table[T]) persist(id uint64, row T) error {
	encoded, err := t.codec.Encode(row)
	if err != nil {
		return fmt.Errorf("records: encode %s%d: %w", t.prefix, id, err)
	}
	return t.space.put(t.key(id), encoded)
}

// Insert stores a copy of row under the next id.
func (t *Table[T]) Insert(row T) (uint64, error) {
	id := uint64(len(t.rows))
	stored := row.Clone()
	stored.SetID(id)
	if err := t.persist(id, stored); err != nil {
		return 0, err
	}
	t.rows = append(t.rows, stored)
	t.space.record(func() error {
		t.rows = t.rows[:id]
		return t.space.delete(t.key(id))
	})
	return id, nil
}

// Update replaces the row stored under id.
func (t *Table[T]) Update(id uint64, row T) error {
	if id >= uint64(len(t.rows)) {
		return fmt.Errorf("records: %s%d does not exist", t.prefix, id)
	}
	prev := t.rows[id]
	stored := row.Clone()
	stored.SetID(id)
	if err := t.persist(id, stored); err != nil {
		return err
	}
	t.rows[id] = stored
	t.space.record(func() error {
		t.rows[id] = prev
		return t.persist(id, prev)
	})
	return nil
}

// Get returns a copy of the row stored under id.
func (t *Table[T]) Get(id uint64) (T, bool) {
	if id >= uint64(len(t.rows)) {
		var zero T
		return zero, false
	}
	return t.rows[id].Clone(), true
}

func (t *Table[T]) Len() uint64 { return uint64(len(t.rows)) }

// Filter returns copies of every row matching keep, in id order.
func (t *Table[T]) Filter(keep func(T) bool) []T {
	var out []T
	for _, row := range t.rows {
		if keep == nil || keep(row) {
			out = append(out, row.Clone())
		}
	}
	return out
}
