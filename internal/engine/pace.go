package engine

import (
	"context"
	"math/rand"
	"time"
)

// PaceFunc pauses between externally observable calls to keep outbound
// traffic from looking bursty. It must return promptly on ctx cancellation.
type PaceFunc func(ctx context.Context, base, jitter time.Duration)

// sleepWithJitter is the default PaceFunc: base plus up to jitter of random
// extra delay, interruptible by ctx.
func sleepWithJitter(ctx context.Context, base, jitter time.Duration) {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int63n(int64(jitter)))
	}
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
