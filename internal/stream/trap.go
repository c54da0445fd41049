package stream

import (
	"context"
	"fmt"

	"github.com/specialistvlad/gridflow/internal/ctxlog"
	"github.com/specialistvlad/gridflow/internal/element"
	"github.com/specialistvlad/gridflow/internal/metrics"
	"github.com/specialistvlad/gridflow/internal/tap"
	"github.com/specialistvlad/gridflow/internal/tuple"
)

// trapHandler diverts failed records of one branch. Without a writer every
// failure stops the node.
type trapHandler struct {
	branch   string
	writer   tap.Writer
	counters metrics.Counters
	trapped  int
}

func (h *trapHandler) handle(ctx context.Context, e element.Element, t tuple.Tuple, cause error) error {
	if h == nil || h.writer == nil {
		return &StageError{Element: e, Err: cause}
	}
	if err := h.writer.Write(ctx, t); err != nil {
		return &StageError{Element: e, Err: fmt.Errorf("trap %s rejected record: %w (after %v)", h.branch, err, cause)}
	}
	h.trapped++
	h.counters.Increment(metrics.GroupTrap, metrics.RecordsTrapped, 1)
	ctxlog.FromContext(ctx).Debug("🪤 Record trapped.", "branch", h.branch, "element", e.String(), "error", cause)
	return nil
}

func (h *trapHandler) flush() error {
	if h.writer == nil || h.trapped == 0 {
		return nil
	}
	if err := h.writer.Flush(); err != nil {
		return fmt.Errorf("flushing trap %s: %w", h.branch, err)
	}
	return nil
}
