// Package fallback runs named provider operations under per-call timeouts
// and retry budgets, in three shapes: full concurrent fan-out, sequential
// first-success, and staged execution with an early-stop threshold.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/domain"
)

// Defaults applied when Options leaves a knob unset.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRetryAttempts = 2
	DefaultRetryDelay    = 500 * time.Millisecond
)

// ErrAllFailed reports that every candidate operation failed.
var ErrAllFailed = errors.New("all fallback operations failed")

// Operation is one named candidate fetch. Lower Priority runs (or is
// preferred) first. Timeout overrides the manager-level default when set.
type Operation struct {
	Name     string
	Priority int
	Timeout  time.Duration
	Run      func(ctx context.Context) ([]domain.Record, error)
}

// Options controls retry and timeout behavior for one execution.
type Options struct {
	// RetryAttempts is the number of retries after the first attempt.
	RetryAttempts int

	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration

	// Timeout bounds each individual call when the operation carries none.
	Timeout time.Duration

	// FailFast stops launching retries and cancels in-flight operations
	// once one operation has succeeded.
	FailFast bool
}

func (o Options) withDefaults() Options {
	if o.RetryAttempts < 0 {
		o.RetryAttempts = 0
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// Result is the outcome of one operation. Records is never nil on success.
type Result struct {
	Name     string
	Stage    string
	Success  bool
	Records  []domain.Record
	Err      error
	Duration time.Duration
	Attempts int
}

// Stage is an ordered group of operations for ExecuteInStages.
type Stage struct {
	Name       string
	Operations []Operation
}

// StageOptions extends Options with the early-stop threshold.
type StageOptions struct {
	Options

	// MaxResults stops execution before the next stage once the
	// accumulated successful record count reaches it. Zero disables
	// early stopping.
	MaxResults int
}

// Manager executes fallback operations. It is stateless apart from its
// logger and safe for concurrent use.
type Manager struct {
	logger zerolog.Logger
}

// NewManager creates a fallback manager.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "fallback").Logger(),
	}
}

// ExecuteFallbacks runs all operations concurrently, each with its own retry
// loop and per-call timeout, and returns one Result per operation in
// ascending priority order. It never returns an error; failed operations are
// embedded as failure results. With FailFast, the first success cancels the
// remaining in-flight operations and suppresses their retries.
func (m *Manager) ExecuteFallbacks(ctx context.Context, ops []Operation, opts Options) []Result {
	if len(ops) == 0 {
		return nil
	}
	opts = opts.withDefaults()

	sorted := make([]Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	runCtx := ctx
	var cancel context.CancelFunc
	var once sync.Once
	if opts.FailFast {
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	results := make([]Result, len(sorted))
	var wg sync.WaitGroup
	for i, op := range sorted {
		wg.Add(1)
		go func(idx int, op Operation) {
			defer wg.Done()
			results[idx] = m.runWithRetries(runCtx, op, opts)
			if results[idx].Success && opts.FailFast {
				once.Do(cancel)
			}
		}(i, op)
	}
	wg.Wait()

	return results
}

// ExecuteWithEarlyReturn tries operations strictly in ascending priority
// order, one at a time, and returns the first success. When every operation
// fails it returns ErrAllFailed; later operations are never invoked once one
// has succeeded.
func (m *Manager) ExecuteWithEarlyReturn(ctx context.Context, ops []Operation, opts Options) (*Result, error) {
	if len(ops) == 0 {
		return nil, ErrAllFailed
	}
	opts = opts.withDefaults()

	sorted := make([]Operation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})

	for _, op := range sorted {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrAllFailed, ctx.Err())
		}
		result := m.runWithRetries(ctx, op, opts)
		if result.Success {
			return &result, nil
		}
	}
	return nil, ErrAllFailed
}

// ExecuteInStages runs each stage's operations concurrently and the stages
// themselves strictly in order. After a stage joins, the accumulated count of
// successfully fetched records is compared against MaxResults; once reached,
// the remaining stages are skipped entirely.
func (m *Manager) ExecuteInStages(ctx context.Context, stages []Stage, opts StageOptions) []Result {
	var all []Result
	collected := 0

	for _, stage := range stages {
		if ctx.Err() != nil {
			break
		}
		if opts.MaxResults > 0 && collected >= opts.MaxResults {
			m.logger.Debug().
				Str("stage", stage.Name).
				Int("collected", collected).
				Int("max_results", opts.MaxResults).
				Msg("skipping stage, enough results collected")
			break
		}

		results := m.ExecuteFallbacks(ctx, stage.Operations, opts.Options)
		for i := range results {
			results[i].Stage = stage.Name
			if results[i].Success {
				collected += len(results[i].Records)
			}
		}
		all = append(all, results...)
	}

	return all
}

// runWithRetries executes one operation with its retry budget. Each attempt
// races against the per-call timeout; a panic inside the operation is
// converted into a failure result.
func (m *Manager) runWithRetries(ctx context.Context, op Operation, opts Options) Result {
	timeout := op.Timeout
	if timeout <= 0 {
		timeout = opts.Timeout
	}

	start := time.Now()
	result := Result{Name: op.Name}

	for attempt := 1; attempt <= opts.RetryAttempts+1; attempt++ {
		result.Attempts = attempt

		if err := ctx.Err(); err != nil {
			result.Err = err
			break
		}

		records, err := m.runOnce(ctx, op, timeout)
		if err == nil {
			if records == nil {
				records = []domain.Record{}
			}
			result.Success = true
			result.Records = records
			result.Err = nil
			break
		}
		result.Err = err

		// Cancellation of the parent context ends the retry loop; a
		// per-attempt timeout does not.
		if ctx.Err() != nil {
			break
		}
		if attempt <= opts.RetryAttempts {
			m.logger.Debug().
				Err(err).
				Str("operation", op.Name).
				Int("attempt", attempt).
				Msg("fallback attempt failed, retrying")
			if !sleepCtx(ctx, opts.RetryDelay) {
				break
			}
		}
	}

	result.Duration = time.Since(start)
	if !result.Success {
		m.logger.Warn().
			Err(result.Err).
			Str("operation", op.Name).
			Int("attempts", result.Attempts).
			Dur("duration", result.Duration).
			Msg("fallback operation failed")
	}
	return result
}

// runOnce executes a single attempt under the per-call timeout.
func (m *Manager) runOnce(ctx context.Context, op Operation, timeout time.Duration) (records []domain.Record, err error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("operation %s panicked: %v", op.Name, r)
		}
	}()

	records, err = op.Run(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %s after %s", domain.ErrTimeout, op.Name, timeout)
	}
	return records, err
}

// sleepCtx pauses for d and reports false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
