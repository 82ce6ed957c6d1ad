// Package sampledata serves a fixed dataset after a timer fires.
package sampledata

import (
	"context"
	"time"
)

// DefaultDelay is how long Fetch waits before resolving.
const DefaultDelay = 10 * time.Millisecond

// Fetch returns [1 2 3] once delay elapses, or ctx.Err() if ctx ends first.
func Fetch(ctx context.Context, delay time.Duration) ([]int, error) {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return []int{1, 2, 3}, nil
	}
}
