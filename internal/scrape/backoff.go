package scrape

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// Delay policy constants. Throttling gets one fixed long cooldown; blocks and
// server errors scale with the attempt number up to a cap.
const (
	defaultMaxAttempts = 6

	throttleCooldown = 60 * time.Second

	blockedBackoffBase = 30 * time.Second
	blockedBackoffCap  = 180 * time.Second

	serverBackoffBase = 10 * time.Second
	serverBackoffCap  = 90 * time.Second

	networkRetryDelay = 5 * time.Second
)

// Controller encapsulates the delay policy and retry budget for page fetches.
// Sleeping and randomness are injected so transition timing is testable
// without real delays.
type Controller struct {
	MaxAttempts int

	sleep  func(context.Context, time.Duration) error
	randFn func() float64
	logger *slog.Logger
}

// NewController builds a controller with the default retry budget.
func NewController(logger *slog.Logger) *Controller {
	return &Controller{
		MaxAttempts: defaultMaxAttempts,
		sleep:       sleepContext,
		randFn:      rand.Float64,
		logger:      logger,
	}
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

// Wait sleeps a uniform-random duration in [min, max] between successful
// page fetches.
func (c *Controller) Wait(ctx context.Context, min, max time.Duration) error {
	if max <= 0 {
		return ctx.Err()
	}
	d := min
	if max > min {
		d = min + time.Duration(c.randFn()*float64(max-min))
	}
	return c.sleep(ctx, d)
}

// Throttled applies the fixed cooldown after an HTTP 429. Throttling does not
// consume a retry attempt.
func (c *Controller) Throttled(ctx context.Context, page int) error {
	c.logger.Warn("received HTTP 429, backing off",
		"page", page,
		"cooldown", throttleCooldown)
	return c.sleep(ctx, throttleCooldown)
}

// Blocked applies an attempt-scaled backoff after an HTTP 403.
func (c *Controller) Blocked(ctx context.Context, page, attempt int) error {
	d := scaledBackoff(blockedBackoffBase, blockedBackoffCap, attempt)
	c.logger.Error("received HTTP 403, rotating session",
		"page", page,
		"attempt", attempt,
		"backoff", d)
	return c.sleep(ctx, d)
}

// ServerError applies an attempt-scaled backoff after a 5xx response.
func (c *Controller) ServerError(ctx context.Context, status, page, attempt int) error {
	d := scaledBackoff(serverBackoffBase, serverBackoffCap, attempt)
	c.logger.Error("received server error, rotating session",
		"status", status,
		"page", page,
		"attempt", attempt,
		"backoff", d)
	return c.sleep(ctx, d)
}

// NetworkError applies a short fixed delay after a connection-level failure.
func (c *Controller) NetworkError(ctx context.Context, page, attempt int, err error) error {
	c.logger.Warn("request error, retrying",
		"page", page,
		"attempt", attempt,
		"error", err)
	return c.sleep(ctx, networkRetryDelay)
}

func scaledBackoff(base, cap time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(attempt)
	if d > cap {
		return cap
	}
	return d
}
