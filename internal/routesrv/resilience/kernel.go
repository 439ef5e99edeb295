package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/routeplane/routeplane/internal/common/apperrors"
	"github.com/routeplane/routeplane/internal/routesrv/config"
	"github.com/routeplane/routeplane/internal/routesrv/metrics"
)

// Adapter names used for breakers and budgets.
const (
	AdapterPostgres = "postgres"
	AdapterRedis    = "redis"
	AdapterMongo    = "mongo"
	AdapterKafka    = "kafka"
)

// Bulkhead operation classes.
const (
	ClassRead  = "read"
	ClassWrite = "write"
	ClassAudit = "audit"
)

// Kernel owns the resilience primitives for the whole process: one breaker
// per adapter, retry budgets for the adapters that are retried, one bulkhead
// per operation class and the graceful drainer.
type Kernel struct {
	breakers map[string]*Breaker
	budgets  map[string]*RetryBudget
	bulks    map[string]*Bulkhead
	drainer  *Drainer
	metrics  *metrics.ResilienceMetrics
}

// Snapshot is the aggregate view served by the resilience health endpoint.
type Snapshot struct {
	Draining bool                  `json:"draining"`
	InFlight int                   `json:"in_flight"`
	Breakers []BreakerSnapshot     `json:"breakers"`
	Budgets  []RetryBudgetSnapshot `json:"retry_budgets"`
	Bulks    []BulkheadSnapshot    `json:"bulkheads"`
}

// NewKernel builds the kernel from configuration. The metrics argument may be
// nil in tests.
func NewKernel(cfg *config.ResilienceConfig, m *metrics.ResilienceMetrics) *Kernel {
	def := breakerOptions(cfg.Default)
	redisOpts := breakerOptions(cfg.Redis)
	maxWait := time.Duration(cfg.BulkheadWaitMilli) * time.Millisecond

	k := &Kernel{
		breakers: map[string]*Breaker{
			AdapterPostgres: NewBreaker(AdapterPostgres, def),
			AdapterRedis:    NewBreaker(AdapterRedis, redisOpts),
			AdapterMongo:    NewBreaker(AdapterMongo, def),
			AdapterKafka:    NewBreaker(AdapterKafka, def),
		},
		budgets: map[string]*RetryBudget{
			AdapterPostgres: NewRetryBudget(AdapterPostgres, cfg.RetryBudget, time.Duration(cfg.RetryWindow)*time.Second),
			AdapterRedis:    NewRetryBudget(AdapterRedis, cfg.RetryBudget, time.Duration(cfg.RetryWindow)*time.Second),
		},
		bulks: map[string]*Bulkhead{
			ClassRead:  NewBulkhead(ClassRead, cfg.ReadConcurrency, maxWait),
			ClassWrite: NewBulkhead(ClassWrite, cfg.WriteConcurrency, maxWait),
			ClassAudit: NewBulkhead(ClassAudit, cfg.AuditConcurrency, maxWait),
		},
		drainer: NewDrainer(),
		metrics: m,
	}

	if m != nil {
		stateValue := map[BreakerState]float64{StateClosed: 0, StateHalfOpen: 1, StateOpen: 2}
		for _, b := range k.breakers {
			b.SetTransitionHook(func(name string, state BreakerState) {
				m.BreakerState.WithLabelValues(name).Set(stateValue[state])
				m.BreakerTransitionsTotal.WithLabelValues(name, string(state)).Inc()
			})
		}
		for _, bh := range k.bulks {
			bh.SetHooks(
				func(name string, inUse int) { m.BulkheadInUse.WithLabelValues(name).Set(float64(inUse)) },
				func(name string, inUse int) { m.BulkheadInUse.WithLabelValues(name).Set(float64(inUse)) },
			)
		}
	}
	return k
}

func breakerOptions(c config.BreakerConfig) BreakerOptions {
	return BreakerOptions{
		FailureThreshold: c.FailureThreshold,
		Window:           time.Duration(c.WindowSeconds) * time.Second,
		OpenTimeout:      time.Duration(c.OpenTimeout) * time.Second,
		MinCalls:         c.MinCalls,
	}
}

// Breaker returns the breaker for the named adapter.
func (k *Kernel) Breaker(adapter string) *Breaker { return k.breakers[adapter] }

// Budget returns the retry budget for the named adapter, or nil when the
// adapter is not retried.
func (k *Kernel) Budget(adapter string) *RetryBudget { return k.budgets[adapter] }

// Bulkhead returns the bulkhead for the named operation class.
func (k *Kernel) Bulkhead(class string) *Bulkhead { return k.bulks[class] }

// Drainer returns the process drain gate.
func (k *Kernel) Drainer() *Drainer { return k.drainer }

// Snapshot collects the state of every primitive for health reporting.
func (k *Kernel) Snapshot() Snapshot {
	s := Snapshot{
		Draining: k.drainer.Draining(),
		InFlight: k.drainer.InFlight(),
	}
	for _, name := range []string{AdapterPostgres, AdapterRedis, AdapterMongo, AdapterKafka} {
		s.Breakers = append(s.Breakers, k.breakers[name].Snapshot())
	}
	for _, name := range []string{AdapterPostgres, AdapterRedis} {
		s.Budgets = append(s.Budgets, k.budgets[name].Snapshot())
	}
	for _, name := range []string{ClassRead, ClassWrite, ClassAudit} {
		s.Bulks = append(s.Bulks, k.bulks[name].Snapshot())
	}
	return s
}

// Execute runs op under the kernel's protection: bulkhead admission, breaker
// check, then the call with budget-gated retries on transient failures. The
// drain gate is applied once at request admission, not here, so in-flight
// requests complete during shutdown.
func (k *Kernel) Execute(ctx context.Context, class, adapter string, op func(ctx context.Context) apperrors.Error) apperrors.Error {
	release, err := k.bulks[class].Acquire(ctx)
	if err != nil {
		k.reject("bulkhead_full")
		return err
	}
	defer release()

	breaker := k.breakers[adapter]
	budget := k.budgets[adapter]

	var lastErr apperrors.Error
	budgetDenied := false

	rerr := retry.Do(
		func() error {
			if aerr := breaker.Allow(); aerr != nil {
				lastErr = aerr
				return retry.Unrecoverable(aerr)
			}
			aerr := op(ctx)
			if aerr == nil {
				breaker.RecordSuccess()
				return nil
			}
			lastErr = aerr
			if errors.Is(aerr, ErrTransient) {
				breaker.RecordFailure()
				return aerr
			}
			// business errors leave the breaker alone and are never retried
			breaker.RecordSuccess()
			return retry.Unrecoverable(aerr)
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			if !errors.Is(err, ErrTransient) {
				return false
			}
			if budget == nil {
				return true
			}
			if !budget.CanRetry() {
				budgetDenied = true
				return false
			}
			return true
		}),
		retry.OnRetry(func(n uint, err error) {
			if budget != nil {
				budget.RecordRetry()
			}
			log.Ctx(ctx).Warn().Uint("attempt", n+1).Str("adapter", adapter).Err(err).Msg("retrying after transient failure")
		}),
	)
	if rerr == nil {
		return nil
	}

	if lastErr == nil {
		return apperrors.New("adapter call failed").Err(rerr)
	}
	if errors.Is(lastErr, ErrCircuitOpen) {
		k.reject("circuit_open")
		return lastErr
	}
	if budgetDenied {
		k.reject("retry_budget")
		return ErrRetryBudgetExceeded.Err(lastErr)
	}
	if errors.Is(lastErr, ErrTransient) {
		return ErrUnavailable.Err(lastErr)
	}
	return lastErr
}

func (k *Kernel) reject(reason string) {
	if k.metrics != nil {
		k.metrics.RejectionsTotal.WithLabelValues(reason).Inc()
	}
}
