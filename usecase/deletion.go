package usecase

import (
	"context"
	"sync"

	"github.com/mdblp/health-tracker/common"
)

var ErrNothingPending = common.NewError(common.CodeInvalidParams, "No deletion is awaiting confirmation", nil)

// DeleteConfirmation is the IDLE / PENDING(id) state machine guarding deletes.
// A new request replaces the pending one; confirm and cancel both return to IDLE.
type DeleteConfirmation struct {
	mu      sync.Mutex
	pending string
	deleter Deleter
}

func NewDeleteConfirmation(deleter Deleter) *DeleteConfirmation {
	return &DeleteConfirmation{deleter: deleter}
}

func (d *DeleteConfirmation) Request(id string) error {
	if id == "" {
		return common.NewError(common.CodeInvalidParams, "missing record id", nil)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = id
	return nil
}

// Pending returns the id awaiting confirmation
func (d *DeleteConfirmation) Pending() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending, d.pending != ""
}

func (d *DeleteConfirmation) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = ""
}

// Confirm returns to IDLE and deletes the pending record. The state is IDLE
// afterwards whether or not the delete succeeded.
func (d *DeleteConfirmation) Confirm(ctx context.Context) (string, error) {
	d.mu.Lock()
	id := d.pending
	d.pending = ""
	d.mu.Unlock()
	if id == "" {
		return "", ErrNothingPending
	}
	return id, d.deleter.Delete(ctx, id)
}
