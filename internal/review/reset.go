//go:build !testharness

package review

import (
	"context"

	"github.com/Veraticus/pouchspec/internal/common"
)

// ClearAllData is only available in test builds.
func (w *Workflow) ClearAllData(_ context.Context) error {
	return common.ErrResetDisabled
}
