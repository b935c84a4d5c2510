package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
)

// fetchWithRetry drives one page fetch through the controller's delay policy.
// 429 responses trigger the long cooldown without consuming an attempt; 403
// and 5xx consume an attempt, back off and rotate the session; connection
// errors consume an attempt after a short delay. Any other non-200 status is
// a hard failure. Exhausting the budget returns ErrRetryBudget.
func fetchWithRetry(ctx context.Context, client *Client, ctrl *Controller, logger *slog.Logger, url, referer string, page int) ([]byte, error) {
	attempt := 1
	for attempt <= ctrl.MaxAttempts {
		status, body, err := client.Get(ctx, url, referer)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if serr := ctrl.NetworkError(ctx, page, attempt, err); serr != nil {
				return nil, serr
			}
			attempt++
			continue
		}

		switch {
		case status == http.StatusOK:
			return body, nil
		case status == http.StatusTooManyRequests:
			if serr := ctrl.Throttled(ctx, page); serr != nil {
				return nil, serr
			}
			// same attempt, same page
		case status == http.StatusForbidden:
			if serr := ctrl.Blocked(ctx, page, attempt); serr != nil {
				return nil, serr
			}
			client.Rotate()
			attempt++
		case status >= 500 && status < 600:
			if serr := ctrl.ServerError(ctx, status, page, attempt); serr != nil {
				return nil, serr
			}
			client.Rotate()
			attempt++
		default:
			logger.Error("unexpected response status",
				"status", status,
				"page", page,
				"url", url)
			return nil, fmt.Errorf("unexpected response %d on page %d", status, page)
		}
	}

	return nil, fmt.Errorf("page %d after %d attempts: %w", page, ctrl.MaxAttempts, ErrRetryBudget)
}
