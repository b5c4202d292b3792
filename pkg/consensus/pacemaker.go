package consensus

import (
	"context"
	"time"

	"github.com/uhyunpark/hyperoptions/pkg/util"
)

// Pacemaker throttles block production so an idle node does not spin.
type Pacemaker struct {
	MinBlockTime time.Duration
	Clock        util.Clock
}

func NewPacemaker(minBlockTime time.Duration, clock util.Clock) *Pacemaker {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Pacemaker{MinBlockTime: minBlockTime, Clock: clock}
}

// WaitForNextBlock returns once MinBlockTime has passed since last.
func (p *Pacemaker) WaitForNextBlock(ctx context.Context, last time.Time) error {
	wait := p.MinBlockTime - p.Clock.Now().Sub(last)
	if wait <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.Clock.After(wait):
		return nil
	}
}
