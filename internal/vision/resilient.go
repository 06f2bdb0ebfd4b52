package vision

import (
	"context"
	"errors"
	"time"

	"github.com/rescan/internal/circuitbreaker"
	apperrors "github.com/rescan/internal/errors"
	"github.com/rescan/internal/logging"
	"github.com/rescan/internal/metrics"
	"github.com/rescan/internal/retry"
	"github.com/rescan/internal/types"
)

// ResilientClassifier wraps a provider with a circuit breaker and bounded
// retries, and records call metrics
type ResilientClassifier struct {
	inner   Classifier
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
	metrics *metrics.Collector
	logger  *logging.Logger
}

// NewResilientClassifier wraps inner. maxRetries is the number of extra
// attempts after the first.
func NewResilientClassifier(inner Classifier, maxRetries int, m *metrics.Collector) *ResilientClassifier {
	cbConfig := circuitbreaker.DefaultConfig(inner.Name())
	cbConfig.IsFailure = isProviderFailure

	retryConfig := retry.DefaultConfig()
	retryConfig.MaxAttempts = maxRetries + 1
	if retryConfig.MaxAttempts < 1 {
		retryConfig.MaxAttempts = 1
	}

	return &ResilientClassifier{
		inner:   inner,
		breaker: circuitbreaker.NewCircuitBreaker(cbConfig),
		retry:   retryConfig,
		metrics: m,
		logger:  logging.GetGlobalLogger().WithField("provider", inner.Name()),
	}
}

// Name returns the wrapped provider's name
func (r *ResilientClassifier) Name() string {
	return r.inner.Name()
}

// Classify calls the provider under breaker and retry protection
func (r *ResilientClassifier) Classify(ctx context.Context, img Image) (*types.MaterialResult, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	var result *types.MaterialResult

	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, r.retry, func(ctx context.Context, attempt int) error {
			res, err := r.inner.Classify(ctx, img)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			r.metrics.ObserveClassify(r.inner.Name(), metrics.OutcomeUnavailable, start)
			r.logger.Warn("Circuit breaker is open, provider unavailable")
			return nil, apperrors.NewProviderUnavailableError(r.inner.Name(), err)
		}

		r.metrics.ObserveClassify(r.inner.Name(), metrics.OutcomeError, start)
		catErr := apperrors.Categorize(err)
		if catErr.Category == apperrors.CategorySystem {
			catErr = apperrors.NewProviderError(r.inner.Name(), err)
		}
		r.logger.WithFields(map[string]interface{}{
			"category": catErr.Category,
			"code":     catErr.Code,
		}).ErrorWithErr("Material identification failed", err)
		return nil, catErr
	}

	r.metrics.ObserveClassify(r.inner.Name(), metrics.OutcomeSuccess, start)
	return result, nil
}

// isProviderFailure counts only provider-side trouble against the breaker
func isProviderFailure(err error) bool {
	catErr := apperrors.Categorize(err)
	switch catErr.Category {
	case apperrors.CategoryProvider, apperrors.CategoryTimeout, apperrors.CategorySystem:
		return true
	default:
		return false
	}
}
