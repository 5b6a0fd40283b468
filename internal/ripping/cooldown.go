package ripping

import (
	"context"
	"time"
)

// cooldown pauses reading after the drive has been busy for too long.
type cooldown struct {
	after   time.Duration
	pause   time.Duration
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
	started time.Time
}

func newCooldown(after, pause time.Duration, now func() time.Time, sleep func(context.Context, time.Duration) error) *cooldown {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = sleepContext
	}
	return &cooldown{after: after, pause: pause, now: now, sleep: sleep, started: now()}
}

// due reports whether the busy period has exceeded the threshold.
func (c *cooldown) due() bool {
	if c == nil || c.after <= 0 {
		return false
	}
	return c.now().Sub(c.started) > c.after
}

// wait sleeps for the pause interval when due and restarts the busy period.
// It returns ctx's error when cancelled mid-sleep.
func (c *cooldown) wait(ctx context.Context) error {
	if err := c.sleep(ctx, c.pause); err != nil {
		return err
	}
	c.started = c.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
