package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-sync/internal/model"
	obdto "github.com/fekuna/omnipos-sync/internal/outbox/dto"
	"github.com/fekuna/omnipos-sync/internal/reconcile"
	"github.com/fekuna/omnipos-sync/internal/remote"
	"go.uber.org/zap"
)

var epoch = time.Unix(0, 0).UTC()

// CycleReport sums up one cycle.
type CycleReport struct {
	StartedAt time.Time           `json:"started_at"`
	Duration  string              `json:"duration"`
	Imported  bool                `json:"imported"`
	Push      *PushReport         `json:"push,omitempty"`
	Pull      []*reconcile.Result `json:"pull"`
	Errors    []string            `json:"errors,omitempty"`
}

type PushReport struct {
	Batches  int  `json:"batches"`
	Sent     int  `json:"sent"`
	Acked    int  `json:"acked"`
	Rejected int  `json:"rejected"`
	Returned int  `json:"returned"` // Back to pending without an answer
	Retried  int  `json:"retried"`  // Error rows requeued under the cap
	Offline  bool `json:"offline"`
}

// RunCycle runs one push and pull pass. Only one cycle runs at a time.
func (w *Worker) RunCycle(ctx context.Context) (*CycleReport, error) {
	if !w.inFlight.CompareAndSwap(false, true) {
		return nil, ErrCycleInFlight
	}
	defer func() {
		w.setState(StateIdle)
		w.inFlight.Store(false)
	}()

	start := w.now()
	report := &CycleReport{StartedAt: start}
	fail := func(err error) {
		report.Errors = append(report.Errors, err.Error())
	}

	// 1. Push first so the remote sees local edits before we pull
	if w.online.Load() {
		w.setState(StatePushing)
		push, err := w.pushPending(ctx)
		report.Push = push
		if err != nil {
			fail(err)
		}
	} else {
		w.logger.Debug("Offline, skipping push")
	}

	// 2. Full import on an empty catalogue, steady pull otherwise
	importing, err := w.needsImport(ctx)
	if err != nil {
		fail(err)
	}
	pullCtx, cancel := withBudget(ctx, w.cfg.PullTimeout)
	if importing {
		w.setState(StateImporting)
		report.Imported = true
		report.Pull = w.fullImport(pullCtx, start, fail)
	} else {
		w.setState(StatePulling)
		report.Pull = w.pullAll(pullCtx, start, fail)
	}
	cancel()

	report.Duration = w.now().Sub(start).String()
	w.finish(report)
	return report, nil
}

func (w *Worker) finish(report *CycleReport) {
	w.cycles.Add(1)

	w.mu.Lock()
	at := report.StartedAt
	w.lastAt = &at
	w.last = report
	w.lastErr = ""
	if len(report.Errors) > 0 {
		w.lastErr = report.Errors[len(report.Errors)-1]
	}
	w.mu.Unlock()

	fields := []zap.Field{
		zap.String("duration", report.Duration),
		zap.Bool("imported", report.Imported),
		zap.Int("errors", len(report.Errors)),
	}
	if report.Push != nil {
		fields = append(fields, zap.Int("acked", report.Push.Acked), zap.Int("rejected", report.Push.Rejected))
	}
	w.logger.Info("Sync cycle finished", fields...)
}

func (w *Worker) needsImport(ctx context.Context) (bool, error) {
	n, err := w.products.CountProducts(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count products: %w", err)
	}
	return n == 0, nil
}

// pushPending sends pending operations oldest first, one batch at a time.
// Only the remote calls run under the push budget; local bookkeeping uses ctx.
func (w *Worker) pushPending(ctx context.Context) (*PushReport, error) {
	report := &PushReport{}
	pushCtx, cancel := withBudget(ctx, w.cfg.PushTimeout)
	defer cancel()
	defer func() {
		// Rejections below the cap go back to pending for the next cycle.
		n, err := w.outbox.RetryErrorOperations(ctx)
		if err != nil {
			w.logger.Error("Failed to requeue error operations", zap.Error(err))
			return
		}
		report.Retried = int(n)
	}()

	for {
		if pushCtx.Err() != nil {
			w.logger.Warn("Push budget spent, leaving the rest for the next cycle", zap.Duration("budget", w.cfg.PushTimeout))
			return report, nil
		}
		ops, err := w.outbox.GetPendingOperations(ctx, &obdto.PendingFilters{Limit: w.cfg.PushBatchSize})
		if err != nil {
			return report, fmt.Errorf("failed to load pending operations: %w", err)
		}
		if len(ops) == 0 {
			return report, nil
		}

		settled, err := w.pushBatch(ctx, pushCtx, ops, report)
		if err != nil {
			return report, err
		}
		// A partial answer or a short batch ends the pass.
		if !settled || len(ops) < w.cfg.PushBatchSize {
			return report, nil
		}
	}
}

// pushBatch sends one batch and records the outcome of every op. It
// reports whether every op was answered. The request itself runs under
// sendCtx.
func (w *Worker) pushBatch(ctx, sendCtx context.Context, ops []model.SyncOperation, report *PushReport) (bool, error) {
	// 1. Wire form; unroutable rows can never succeed
	wire := make([]remote.Op, 0, len(ops))
	ids := make([]string, 0, len(ops))
	byID := make(map[string]*model.SyncOperation, len(ops))
	for i := range ops {
		op := &ops[i]
		wo, ok := remote.NewOp(op)
		if !ok {
			if err := w.outbox.MarkAsError(ctx, op.OpID, "operation cannot be encoded"); err != nil {
				return false, err
			}
			report.Rejected++
			continue
		}
		wire = append(wire, wo)
		ids = append(ids, op.OpID)
		byID[op.OpID] = op
	}
	if len(wire) == 0 {
		return true, nil
	}

	// 2. Send
	if err := w.outbox.MarkAsSent(ctx, ids); err != nil {
		return false, err
	}
	report.Batches++
	report.Sent += len(ids)

	resp, err := w.client.Push(sendCtx, w.dc.DeviceID, wire)

	var transportErr *remote.TransportError
	var rejection *remote.RejectionError
	switch {
	case errors.As(err, &transportErr):
		n, rerr := w.outbox.ResetSent(ctx, ids)
		if rerr != nil {
			return false, rerr
		}
		report.Returned += int(n)
		report.Offline = true
		w.setOnline(false, err)
		return false, nil

	case errors.As(err, &rejection):
		for _, id := range ids {
			if merr := w.outbox.MarkAsError(ctx, id, rejection.Message); merr != nil {
				return false, merr
			}
		}
		report.Rejected += len(ids)
		return true, nil

	case err != nil:
		// Not an answer from the remote, e.g. no url configured.
		if _, rerr := w.outbox.ResetSent(ctx, ids); rerr != nil {
			return false, rerr
		}
		return false, err
	}

	// 3. Per-op outcome
	answered := make(map[string]bool, len(ids))

	acked := resp.AppliedIDs()
	known := acked[:0]
	for _, id := range acked {
		if _, ok := byID[id]; ok && !answered[id] {
			known = append(known, id)
			answered[id] = true
		}
	}
	if err := w.outbox.MarkAsAcked(ctx, known); err != nil {
		return false, err
	}
	report.Acked += len(known)
	if err := w.markMovesSynced(ctx, known, byID); err != nil {
		return false, err
	}

	for _, c := range resp.Conflicts {
		if _, ok := byID[c.OpID]; !ok || answered[c.OpID] {
			continue
		}
		answered[c.OpID] = true
		if err := w.outbox.MarkAsError(ctx, c.OpID, c.Error); err != nil {
			return false, err
		}
		report.Rejected++
	}

	var missing []string
	for _, id := range ids {
		if !answered[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		n, err := w.outbox.ResetSent(ctx, missing)
		if err != nil {
			return false, err
		}
		report.Returned += int(n)
		w.logger.Warn("Remote left operations unanswered", zap.Int("count", len(missing)))
		return false, nil
	}
	return true, nil
}

func (w *Worker) markMovesSynced(ctx context.Context, acked []string, byID map[string]*model.SyncOperation) error {
	var moveIDs []string
	for _, id := range acked {
		op := byID[id]
		if op.OpType != model.OpStockMove {
			continue
		}
		var payload obdto.StockMovePayload
		if err := json.Unmarshal([]byte(op.Payload), &payload); err != nil || payload.MoveID == "" {
			w.logger.Warn("Acked stock move without move id", zap.String("op_id", id))
			continue
		}
		moveIDs = append(moveIDs, payload.MoveID)
	}
	if len(moveIDs) == 0 {
		return nil
	}
	return w.outbox.MarkStockMovesSynced(ctx, moveIDs)
}

// pullAll pulls each entity since its watermark. A failing entity keeps its
// watermark and does not stop the others.
func (w *Worker) pullAll(ctx context.Context, start time.Time, fail func(error)) []*reconcile.Result {
	results := make([]*reconcile.Result, 0, len(remote.PullOrder))
	for _, entity := range remote.PullOrder {
		since := epoch
		if entity != remote.EntityUsers {
			at, err := w.settings.Watermark(ctx, entity)
			if err != nil {
				fail(fmt.Errorf("failed to read %s watermark: %w", entity, err))
				continue
			}
			since = at
		}

		rows, err := w.client.PullAll(ctx, &remote.PullRequest{Entity: entity, Since: since})
		if err != nil {
			w.logger.Warn("Pull failed", zap.String("entity", entity), zap.Error(err))
			fail(err)
			continue
		}

		res, err := w.applyAndAdvance(ctx, entity, rows, start)
		if err != nil {
			fail(err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// fullImport pulls every entity from the epoch. Products come one unit level
// at a time to keep pages small.
func (w *Worker) fullImport(ctx context.Context, start time.Time, fail func(error)) []*reconcile.Result {
	w.logger.Info("Catalogue is empty, running full import")

	results := make([]*reconcile.Result, 0, len(remote.PullOrder))
	complete := true
	for _, entity := range remote.PullOrder {
		var rows []remote.Row
		var err error
		if entity == remote.EntityProducts {
			rows, err = w.pullProductsByLevel(ctx)
		} else {
			rows, err = w.client.PullAll(ctx, &remote.PullRequest{Entity: entity, Since: epoch, Full: true})
		}
		if err != nil {
			w.logger.Warn("Import pull failed", zap.String("entity", entity), zap.Error(err))
			fail(err)
			complete = false
			continue
		}

		res, err := w.applyAndAdvance(ctx, entity, rows, start)
		if err != nil {
			fail(err)
			complete = false
			continue
		}
		results = append(results, res)
	}

	if complete {
		if err := w.settings.MarkInitialImportDone(ctx); err != nil {
			fail(err)
		}
	}
	return results
}

func (w *Worker) pullProductsByLevel(ctx context.Context) ([]remote.Row, error) {
	var rows []remote.Row
	for _, level := range model.UnitLevels {
		page, err := w.client.PullAll(ctx, &remote.PullRequest{
			Entity:    remote.EntityProducts,
			Since:     epoch,
			Full:      true,
			UnitLevel: level,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to import %s products: %w", level, err)
		}
		rows = append(rows, page...)
	}
	return rows, nil
}

// applyAndAdvance applies rows and moves the watermark to the newest row
// timestamp, or to the cycle start when rows carry none.
func (w *Worker) applyAndAdvance(ctx context.Context, entity string, rows []remote.Row, start time.Time) (*reconcile.Result, error) {
	res, err := w.applier.Apply(ctx, entity, rows)
	if err != nil {
		w.logger.Error("Apply failed", zap.String("entity", entity), zap.Error(err))
		return nil, fmt.Errorf("failed to apply %s: %w", entity, err)
	}
	if len(rows) == 0 || entity == remote.EntityUsers {
		return res, nil
	}

	var newest time.Time
	for _, row := range rows {
		if at, ok := row.UpdatedAt(); ok && at.After(newest) {
			newest = at
		}
	}
	if newest.IsZero() {
		newest = start
	}
	if err := w.settings.SetWatermark(ctx, entity, newest); err != nil {
		return res, fmt.Errorf("failed to advance %s watermark: %w", entity, err)
	}
	return res, nil
}

func withBudget(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
