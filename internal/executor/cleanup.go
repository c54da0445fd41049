package executor

import (
	"context"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
)

type cleanup struct {
	owner string
	fn    func()
}

// PushCleanup registers fn to run once the whole run finished, whatever its
// outcome. Cleanups run in reverse registration order.
func (e *Executor) PushCleanup(owner string, fn func()) {
	e.cleanupMu.Lock()
	defer e.cleanupMu.Unlock()
	e.cleanups = append(e.cleanups, cleanup{owner: owner, fn: fn})
}

func (e *Executor) executeCleanupStack(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	e.cleanupMu.Lock()
	stack := e.cleanups
	e.cleanups = nil
	e.cleanupMu.Unlock()

	for i := len(stack) - 1; i >= 0; i-- {
		logger.Debug("Running cleanup.", "owner", stack[i].owner)
		stack[i].fn()
	}
}
