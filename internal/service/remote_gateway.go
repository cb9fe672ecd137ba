package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/prayer-schedule-api/internal/models"
	appErrors "github.com/noah-isme/prayer-schedule-api/pkg/errors"
	"github.com/noah-isme/prayer-schedule-api/pkg/resilience"
)

// Guarded remote operation classes; each owns a circuit breaker.
const (
	RemoteOpUpsert = "remote.upsert"
	RemoteOpLoad   = "remote.load"
)

type remoteScheduleStore interface {
	UpsertAll(ctx context.Context, days []models.PrayerDay) error
	LoadAll(ctx context.Context) ([]models.PrayerDay, error)
}

// RemoteGateway runs remote store calls as breaker(retry(call)). A breaker
// therefore records one failure per exhausted retry sequence.
type RemoteGateway struct {
	store    remoteScheduleStore
	retrier  *resilience.Retrier
	breakers *resilience.Registry
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewRemoteGateway builds a gateway. A nil store disables remote persistence.
func NewRemoteGateway(store remoteScheduleStore, retrier *resilience.Retrier, breakers *resilience.Registry, metrics *MetricsService, logger *zap.Logger) *RemoteGateway {
	if retrier == nil {
		retrier = resilience.NewRetrier(resilience.DefaultRetryConfig())
	}
	if breakers == nil {
		breakers = resilience.NewRegistry(resilience.BreakerConfig{Logger: logger})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteGateway{store: store, retrier: retrier, breakers: breakers, metrics: metrics, logger: logger}
}

// Enabled reports whether a remote store is configured.
func (g *RemoteGateway) Enabled() bool {
	return g != nil && g.store != nil
}

// Push replaces the remote timeline with days.
func (g *RemoteGateway) Push(ctx context.Context, days models.Timeline) error {
	return g.guard(ctx, RemoteOpUpsert, func(ctx context.Context) error {
		return g.store.UpsertAll(ctx, days)
	})
}

// Pull fetches the remote timeline, sorted and deduplicated by date.
func (g *RemoteGateway) Pull(ctx context.Context) (models.Timeline, error) {
	var days []models.PrayerDay
	err := g.guard(ctx, RemoteOpLoad, func(ctx context.Context) error {
		loaded, err := g.store.LoadAll(ctx)
		if err != nil {
			return err
		}
		days = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Canonicalize(days), nil
}

// Breakers exposes the breaker registry for status and reset.
func (g *RemoteGateway) Breakers() *resilience.Registry {
	if g == nil {
		return nil
	}
	return g.breakers
}

func (g *RemoteGateway) guard(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	if !g.Enabled() {
		return appErrors.ErrRemoteDisabled
	}
	start := time.Now()
	attempts := 0
	err := g.breakers.Breaker(operation).Execute(ctx, func(ctx context.Context) error {
		return g.retrier.Do(ctx, func(ctx context.Context) error {
			attempts++
			err := call(ctx)
			if err != nil {
				g.metrics.RecordRemoteAttempt(operation, "failure")
				return err
			}
			g.metrics.RecordRemoteAttempt(operation, "success")
			return nil
		})
	})
	g.metrics.ObserveRemoteCall(operation, time.Since(start))

	switch {
	case err == nil:
		return nil
	case resilience.IsCircuitOpen(err):
		g.metrics.RecordRemoteAttempt(operation, "rejected")
		g.logger.Warn("remote call rejected by open circuit", zap.String("operation", operation), zap.Error(err))
	default:
		g.logger.Error("remote call failed",
			zap.String("operation", operation),
			zap.Int("attempts", attempts),
			zap.Bool("retries_exhausted", resilience.IsRetryExhausted(err)),
			zap.Error(err))
	}
	return err
}

// RemoteAppError maps a gateway error onto the API error taxonomy.
func RemoteAppError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *appErrors.Error
	switch {
	case resilience.IsCircuitOpen(err):
		return appErrors.Wrap(err, appErrors.ErrCircuitOpen.Code, appErrors.ErrCircuitOpen.Status, err.Error())
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, "remote call cancelled")
	default:
		return appErrors.Wrap(err, appErrors.ErrRemoteUnavailable.Code, appErrors.ErrRemoteUnavailable.Status, appErrors.ErrRemoteUnavailable.Message)
	}
}

// remoteOutcome summarises a push for an ImportReport.
func remoteOutcome(err error) models.RemoteOutcome {
	switch {
	case err == nil:
		return models.RemoteOutcome{Status: models.RemoteSynced}
	case errors.Is(err, appErrors.ErrRemoteDisabled):
		return models.RemoteOutcome{Status: models.RemoteDisabled}
	case resilience.IsCircuitOpen(err):
		return models.RemoteOutcome{Status: models.RemoteCircuitOpen, Error: err.Error()}
	default:
		return models.RemoteOutcome{Status: models.RemoteFailed, Error: err.Error()}
	}
}
