package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	pushAttempts = 3
	pushDelay    = 500 * time.Millisecond
)

// Push sends the collected metrics to the Pushgateway at url, retrying
// transient failures. It is a no-op when metrics are disabled or url is empty.
func Push(ctx context.Context, url string, client *http.Client, logger *slog.Logger) error {
	if !enabled || url == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}

	pusher := push.New(url, jobName).Gatherer(registry).Client(client)

	return retry.Do(
		func() error {
			return pusher.PushContext(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(pushAttempts),
		retry.Delay(pushDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(attempt uint, err error) {
			logger.Warn("metrics push failed, retrying", "attempt", attempt+1, "error", err)
		}),
	)
}
