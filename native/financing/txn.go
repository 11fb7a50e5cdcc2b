package financing

import (
	"fmt"

	"nftfi/core/events"
	nativecommon "nftfi/native/common"
)

// eventBuffer holds events raised by the engine and the components it owns
// until the surrounding operation commits.
type eventBuffer struct {
	pending []events.Event
}

func (b *eventBuffer) Emit(evt events.Event) {
	if evt != nil {
		b.pending = append(b.pending, evt)
	}
}

func (b *eventBuffer) drain() []events.Event {
	out := b.pending
	b.pending = nil
	return out
}

type compensation struct {
	name string
	undo func() error
}

// txn tracks one entry point: journal snapshot, completed interactions and
// work deferred until commit.
type txn struct {
	e             *Engine
	op            string
	snap          int
	compensations []compensation
	onCommit      []func()
}

func (e *Engine) enter() error {
	if e.entered {
		return nativecommon.ErrReentrantCall
	}
	e.entered = true
	return nil
}

func (e *Engine) exit() { e.entered = false }

// guard rejects non-admin mutations while the module is paused.
func (e *Engine) guard() error {
	return nativecommon.Guard(e.pauses, moduleName)
}

func (e *Engine) begin(op string) *txn {
	e.buffer.drain()
	return &txn{e: e, op: op, snap: e.space.Snapshot()}
}

// interact runs an external call. When undo is set it is replayed if a later
// step of the same operation fails.
func (t *txn) interact(name string, do func() error, undo func() error) error {
	if err := do(); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if undo != nil {
		t.compensations = append(t.compensations, compensation{name: name, undo: undo})
	}
	return nil
}

func (t *txn) after(fn func()) { t.onCommit = append(t.onCommit, fn) }

// finish commits on success. On failure completed interactions are
// compensated newest first and every journaled write is reverted.
func (t *txn) finish(err error) error {
	e := t.e
	if err == nil {
		if commitErr := e.space.Commit(t.snap); commitErr != nil {
			return commitErr
		}
		for _, fn := range t.onCommit {
			fn()
		}
		for _, evt := range e.buffer.drain() {
			e.emitter.Emit(evt)
		}
		e.logger.Debug("financing operation committed", "op", t.op)
		return nil
	}
	for i := len(t.compensations) - 1; i >= 0; i-- {
		c := t.compensations[i]
		if undoErr := c.undo(); undoErr != nil {
			e.logger.Error("financing compensation failed",
				"op", t.op,
				"interaction", c.name,
				"error", undoErr,
			)
		}
	}
	if revertErr := e.space.RevertToSnapshot(t.snap); revertErr != nil {
		e.logger.Error("financing journal revert failed", "op", t.op, "error", revertErr)
	}
	e.buffer.drain()
	return err
}
