// Package worker runs the periodic sync cycle: push the outbox, then pull
// remote changes and hand them to the reconciliation applier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fekuna/omnipos-sync/internal/device"
	"github.com/fekuna/omnipos-sync/internal/logger"
	"github.com/fekuna/omnipos-sync/internal/outbox"
	"github.com/fekuna/omnipos-sync/internal/product"
	"github.com/fekuna/omnipos-sync/internal/reconcile"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"github.com/fekuna/omnipos-sync/internal/settings"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

var (
	ErrCycleInFlight = errors.New("sync cycle already in flight")
	ErrStopped       = errors.New("sync worker stopped")
)

type State string

const (
	StateIdle      State = "idle"
	StateImporting State = "importing"
	StatePushing   State = "pushing"
	StatePulling   State = "pulling"
)

// Applier writes pulled rows locally.
type Applier interface {
	Apply(ctx context.Context, entity string, rows []remote.Row) (*reconcile.Result, error)
}

type Config struct {
	Interval      time.Duration
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	StartupDelay  time.Duration
	PushBatchSize int
	// Budgets for a whole phase; each request has its own timeout too.
	PushTimeout time.Duration
	PullTimeout time.Duration
}

// Status is a point-in-time view of the worker for admin surfaces.
type Status struct {
	State       State        `json:"state"`
	Online      bool         `json:"online"`
	Running     bool         `json:"running"`
	DeviceID    string       `json:"device_id"`
	Cycles      int64        `json:"cycles"`
	LastCycleAt *time.Time   `json:"last_cycle_at"`
	LastError   string       `json:"last_error,omitempty"`
	LastReport  *CycleReport `json:"last_report,omitempty"`
}

type Worker struct {
	cfg      Config
	dc       device.Context
	client   remote.Client
	outbox   outbox.UseCase
	products product.UseCase
	settings settings.UseCase
	applier  Applier
	logger   logger.ZapLogger
	now      func() time.Time

	cron    *cron.Cron
	startup *time.Timer
	ctx     context.Context
	cancel  context.CancelFunc

	// lifecycle orders wg.Add against Stop's wg.Wait.
	lifecycle sync.Mutex
	wg        sync.WaitGroup

	inFlight atomic.Bool
	online   atomic.Bool
	started  atomic.Bool
	stopped  atomic.Bool
	cycles   atomic.Int64

	mu      sync.RWMutex
	state   State
	last    *CycleReport
	lastAt  *time.Time
	lastErr string
}

func NewWorker(
	cfg Config,
	dc device.Context,
	client remote.Client,
	ob outbox.UseCase,
	products product.UseCase,
	st settings.UseCase,
	applier Applier,
	log logger.ZapLogger,
) *Worker {
	if cfg.PushBatchSize <= 0 {
		cfg.PushBatchSize = 50
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}

	w := &Worker{
		cfg:      cfg,
		dc:       dc,
		client:   client,
		outbox:   ob,
		products: products,
		settings: st,
		applier:  applier,
		logger:   log.With(zap.String("device_id", dc.DeviceID)),
		now:      func() time.Time { return time.Now().UTC() },
		state:    StateIdle,
		ctx:      context.Background(),
	}
	w.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{w.logger})))
	// Assume reachable until the first probe says otherwise.
	w.online.Store(true)
	return w
}

// Start recovers operations left in flight, schedules the cycle and the
// probe, and runs the first cycle after the startup delay. Cancelling ctx
// does not interrupt a running cycle; call Stop for that.
func (w *Worker) Start(ctx context.Context) error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.stopped.Load() {
		return ErrStopped
	}
	if !w.started.CompareAndSwap(false, true) {
		return nil
	}
	// Cycles outlive ctx; only Stop ends them.
	w.ctx, w.cancel = context.WithCancel(context.WithoutCancel(ctx))

	// 1. Sent rows from a previous run never got an answer
	if _, err := w.outbox.RecoverInFlight(ctx); err != nil {
		return fmt.Errorf("failed to recover in-flight operations: %w", err)
	}

	// 2. Schedule
	if _, err := w.cron.AddFunc(every(w.cfg.Interval), w.scheduledCycle); err != nil {
		return fmt.Errorf("failed to schedule sync cycle: %w", err)
	}
	if _, err := w.cron.AddFunc(every(w.cfg.ProbeInterval), w.probe); err != nil {
		return fmt.Errorf("failed to schedule probe: %w", err)
	}

	// 3. First probe and cycle
	w.wg.Add(1)
	w.startup = time.AfterFunc(w.cfg.StartupDelay, func() {
		defer w.wg.Done()
		w.probe()
		w.scheduledCycle()
	})
	w.cron.Start()

	w.logger.Info("Sync worker started",
		zap.Duration("interval", w.cfg.Interval),
		zap.Duration("probe_interval", w.cfg.ProbeInterval),
		zap.Duration("startup_delay", w.cfg.StartupDelay),
	)
	return nil
}

// Stop prevents further cycles and waits for the in-flight one. When ctx
// expires first, the running cycle is cancelled.
func (w *Worker) Stop(ctx context.Context) error {
	w.lifecycle.Lock()
	if !w.stopped.CompareAndSwap(false, true) {
		w.lifecycle.Unlock()
		return nil
	}
	if w.startup != nil && w.startup.Stop() {
		w.wg.Done()
	}
	w.lifecycle.Unlock()

	done := make(chan struct{})
	go func() {
		<-w.cron.Stop().Done()
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if w.cancel != nil {
			w.cancel()
		}
		<-done
		return ctx.Err()
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("Sync worker stopped")
	return nil
}

// TriggerNow starts a cycle in the background unless one is running.
func (w *Worker) TriggerNow() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	if w.stopped.Load() {
		return ErrStopped
	}
	if w.inFlight.Load() {
		return ErrCycleInFlight
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if _, err := w.RunCycle(w.ctx); err != nil && !errors.Is(err, ErrCycleInFlight) {
			w.logger.Warn("Triggered sync cycle failed", zap.Error(err))
		}
	}()
	return nil
}

func (w *Worker) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return Status{
		State:       w.state,
		Online:      w.online.Load(),
		Running:     w.started.Load() && !w.stopped.Load(),
		DeviceID:    w.dc.DeviceID,
		Cycles:      w.cycles.Load(),
		LastCycleAt: w.lastAt,
		LastError:   w.lastErr,
		LastReport:  w.last,
	}
}

func (w *Worker) Online() bool {
	return w.online.Load()
}

func (w *Worker) scheduledCycle() {
	if w.stopped.Load() {
		return
	}
	_, err := w.RunCycle(w.ctx)
	switch {
	case errors.Is(err, ErrCycleInFlight):
		w.logger.Debug("Sync cycle already in flight, skipping tick")
	case err != nil:
		w.logger.Warn("Sync cycle failed", zap.Error(err))
	}
}

// probe only flips the online flag.
func (w *Worker) probe() {
	ctx, cancel := context.WithTimeout(w.ctx, w.cfg.ProbeTimeout)
	defer cancel()

	err := w.client.Ping(ctx)
	w.setOnline(err == nil, err)
}

func (w *Worker) setOnline(online bool, cause error) {
	if w.online.Swap(online) == online {
		return
	}
	if online {
		w.logger.Info("Remote reachable, back online")
		return
	}
	w.logger.Warn("Remote unreachable, going offline", zap.Error(cause))
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func every(d time.Duration) string {
	return "@every " + d.String()
}

// cronLogger routes scheduler messages through the application logger.
type cronLogger struct {
	log logger.ZapLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, zap.Any("details", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}
