// Package worker runs the background half of the system: it consumes
// queue messages from the API process and mirrors applications to the
// export spreadsheet, and delivers decision mail.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lofawell/internal/amqp"
	"lofawell/internal/core"
	"lofawell/internal/notify"
	"lofawell/internal/sheets"
	"lofawell/internal/store"
)

type Worker struct {
	repo     store.ApplicationRepository
	exporter sheets.ApplicationWriter
	bulk     sheets.BulkExporter
	sink     notify.Sink
}

func New(repo store.ApplicationRepository, exporter sheets.ApplicationWriter, bulk sheets.BulkExporter, sink notify.Sink) *Worker {
	return &Worker{repo: repo, exporter: exporter, bulk: bulk, sink: sink}
}

// Handlers returns the dispatch table for the AMQP consumer loop.
func (w *Worker) Handlers() amqp.Handlers {
	return amqp.Handlers{
		Sync:     w.HandleSyncMessage,
		Decision: w.HandleDecisionMessage,
	}
}

// HandleSyncMessage mirrors one application to the spreadsheet. The
// record is fetched fresh so delayed messages still export current
// data. A record deleted since the message was queued is not an error.
func (w *Worker) HandleSyncMessage(ctx context.Context, msg *amqp.ApplicationSyncMessage) error {
	if w.exporter == nil {
		slog.WarnContext(ctx, "No exporter configured, dropping sync message", "app_id", msg.AppID)
		return nil
	}

	app, err := w.repo.Get(ctx, msg.AppID)
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Application gone before sync, skipping", "app_id", msg.AppID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get application: %w", err)
	}

	if err := w.exporter.UpsertApplication(ctx, app); err != nil {
		return fmt.Errorf("export application: %w", err)
	}

	slog.InfoContext(ctx, "Application synced to sheet", "app_id", app.ID, "status", app.Status)
	return nil
}

// HandleDecisionMessage delivers a review outcome to the applicant.
func (w *Worker) HandleDecisionMessage(ctx context.Context, msg *amqp.DecisionMessage) error {
	if w.sink == nil {
		slog.WarnContext(ctx, "No mail sink configured, dropping decision message", "app_id", msg.AppID)
		return nil
	}
	if msg.To == "" {
		slog.WarnContext(ctx, "Decision message without recipient, dropping", "app_id", msg.AppID)
		return nil
	}

	if err := w.sink.Send(ctx, msg.To, msg.Subject, msg.Body); err != nil {
		return fmt.Errorf("send decision mail: %w", err)
	}

	slog.InfoContext(ctx, "Decision mail delivered",
		"app_id", msg.AppID,
		"to", msg.To,
		"decision", msg.Decision)
	return nil
}

// Reconcile rewrites the full export sheet from the store. Run at
// startup and on a timer as a backstop for lost queue messages.
func (w *Worker) Reconcile(ctx context.Context) error {
	if w.bulk == nil {
		return nil
	}

	apps, err := w.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("list applications: %w", err)
	}
	if err := w.bulk.ExportAll(ctx, apps); err != nil {
		return fmt.Errorf("export all applications: %w", err)
	}

	slog.InfoContext(ctx, "Reconciled export sheet", "count", len(apps))
	return nil
}

// RunReconcileLoop reconciles once immediately and then on every tick
// until ctx is cancelled. Errors are logged, not fatal.
func (w *Worker) RunReconcileLoop(ctx context.Context, interval time.Duration) error {
	if err := w.Reconcile(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup reconcile failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic reconcile failed", "error", err)
			}
		}
	}
}
