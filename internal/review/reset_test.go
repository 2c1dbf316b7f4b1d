//go:build !testharness

package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/pouchspec/internal/common"
	"github.com/Veraticus/pouchspec/internal/testutil"
)

func TestClearAllData_Disabled(t *testing.T) {
	w := newTestWorkflow(t, testutil.SetupMemoryStore(t))
	task := openTask(t, w, "file-1")

	err := w.ClearAllData(context.Background())
	require.ErrorIs(t, err, common.ErrResetDisabled)

	_, err = w.GetReviewTask(context.Background(), task.ID)
	assert.NoError(t, err)
}
