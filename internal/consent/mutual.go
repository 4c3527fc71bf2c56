package consent

import (
	"context"
	"fmt"
)

// Detector answers "has the other side already shown interest". It only
// reads, so calling it again is always safe.
type Detector struct {
	signals SignalStore
}

func NewDetector(signals SignalStore) *Detector {
	return &Detector{signals: signals}
}

// CheckMutual reports whether a positive signal to -> from exists.
func (d *Detector) CheckMutual(ctx context.Context, from, to uint64) (bool, error) {
	ok, err := d.signals.HasPositive(ctx, to, from)
	if err != nil {
		return false, fmt.Errorf("check mutual %d<->%d: %w", from, to, err)
	}
	return ok, nil
}
