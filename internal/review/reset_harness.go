//go:build testharness

package review

import (
	"context"
	"fmt"

	"github.com/Veraticus/pouchspec/internal/common"
)

type resetter interface {
	ResetAll(ctx context.Context) error
}

// ClearAllData wipes every task and log entry from the store.
func (w *Workflow) ClearAllData(ctx context.Context) error {
	r, ok := w.store.(resetter)
	if !ok {
		return fmt.Errorf("%w: store %T cannot be reset", common.ErrResetDisabled, w.store)
	}
	return r.ResetAll(ctx)
}
