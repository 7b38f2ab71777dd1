package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"lofawell/internal/amqp"
	"lofawell/internal/core"
	"lofawell/internal/store/memory"
)

type fakeExporter struct {
	upserted []core.Application
	exported [][]core.Application
	fail     bool
}

func (f *fakeExporter) UpsertApplication(_ context.Context, app core.Application) error {
	if f.fail {
		return errors.New("sheets quota exceeded")
	}
	f.upserted = append(f.upserted, app)
	return nil
}

func (f *fakeExporter) ExportAll(_ context.Context, apps []core.Application) error {
	if f.fail {
		return errors.New("sheets quota exceeded")
	}
	f.exported = append(f.exported, apps)
	return nil
}

type fakeSink struct {
	sent []string
	fail bool
}

func (f *fakeSink) Send(_ context.Context, to, subject, body string) error {
	if f.fail {
		return errors.New("relay down")
	}
	f.sent = append(f.sent, to)
	return nil
}

func seedApp(t *testing.T, repo *memory.Store, id string) core.Application {
	t.Helper()
	app := core.Application{
		ID: id, UserID: "E100", Category: core.HousingSupport,
		SubmittedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		Amount:      50000, Status: core.StatusApproved,
	}
	if err := repo.Put(context.Background(), app); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return app
}

func TestHandleSyncMessage(t *testing.T) {
	repo := memory.New()
	app := seedApp(t, repo, "1")
	exporter := &fakeExporter{}
	w := New(repo, exporter, exporter, &fakeSink{})

	err := w.HandleSyncMessage(context.Background(), amqp.NewApplicationSyncMessage(app.ID))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(exporter.upserted) != 1 || exporter.upserted[0].ID != app.ID {
		t.Fatalf("expected one upsert of %s, got %+v", app.ID, exporter.upserted)
	}
}

func TestHandleSyncMessageMissingRecord(t *testing.T) {
	repo := memory.New()
	exporter := &fakeExporter{}
	w := New(repo, exporter, exporter, &fakeSink{})

	// Deleted before the worker got to it: not an error, no requeue.
	err := w.HandleSyncMessage(context.Background(), amqp.NewApplicationSyncMessage("gone"))
	if err != nil {
		t.Fatalf("missing record must not error: %v", err)
	}
	if len(exporter.upserted) != 0 {
		t.Fatal("nothing should be exported")
	}
}

func TestHandleSyncMessageExportFailureRequeues(t *testing.T) {
	repo := memory.New()
	app := seedApp(t, repo, "1")
	w := New(repo, &fakeExporter{fail: true}, nil, nil)

	if err := w.HandleSyncMessage(context.Background(), amqp.NewApplicationSyncMessage(app.ID)); err == nil {
		t.Fatal("export failure must propagate so the delivery is requeued")
	}
}

func TestHandleDecisionMessage(t *testing.T) {
	sink := &fakeSink{}
	w := New(memory.New(), nil, nil, sink)

	msg := &amqp.DecisionMessage{
		Kind: amqp.KindDecision, AppID: "1",
		To: "kim@example.com", Subject: "s", Body: "b",
		Decision: core.StatusApproved,
	}
	if err := w.HandleDecisionMessage(context.Background(), msg); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.sent) != 1 || sink.sent[0] != "kim@example.com" {
		t.Fatalf("sent = %v", sink.sent)
	}

	// No recipient: dropped silently.
	msg.To = ""
	if err := w.HandleDecisionMessage(context.Background(), msg); err != nil {
		t.Fatalf("empty recipient must not error: %v", err)
	}
	if len(sink.sent) != 1 {
		t.Fatal("no extra send expected")
	}
}

func TestReconcile(t *testing.T) {
	repo := memory.New()
	seedApp(t, repo, "1")
	seedApp(t, repo, "2")
	exporter := &fakeExporter{}
	w := New(repo, exporter, exporter, nil)

	if err := w.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(exporter.exported) != 1 || len(exporter.exported[0]) != 2 {
		t.Fatalf("expected one export of 2 applications, got %+v", exporter.exported)
	}
}
