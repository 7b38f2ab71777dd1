package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"lofawell/internal/core"
	"lofawell/internal/store"
)

// Actor is the authenticated caller of an operation. The engine only
// cares about identity (ownership checks) and the admin role (review).
type Actor struct {
	ID    string
	Admin bool
}

// SyncPublisher emits best-effort events so downstream consumers (the
// spreadsheet sync worker) pick up changed applications. A nil
// publisher disables the events.
type SyncPublisher interface {
	PublishApplicationSync(ctx context.Context, appID string) error
}

// SubmitInput carries the caller-editable fields of an application.
type SubmitInput struct {
	Category      core.Category
	Amount        int64
	AttachmentRef string
	TargetName    string
	Account       string
	Detail        string
	Department    string
	Rank          string
}

// ApplicationService runs the application lifecycle: create,
// edit-resubmit, cancel, delete. All operations are synchronous and
// request-scoped; ownership is checked per call.
type ApplicationService struct {
	repo      store.ApplicationRepository
	clock     Clock
	publisher SyncPublisher
}

func NewApplicationService(repo store.ApplicationRepository, clock Clock, publisher SyncPublisher) *ApplicationService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ApplicationService{repo: repo, clock: clock, publisher: publisher}
}

// Submit creates a new pending application for the actor. The
// duplicate guard runs only here, never on edits. The assigned id is
// derived from the submission timestamp, as the historical records
// were.
func (s *ApplicationService) Submit(ctx context.Context, actor Actor, in SubmitInput) (core.Application, error) {
	now := s.clock.Now()

	app := core.Application{
		ID:            strconv.FormatInt(now.UnixMilli(), 10),
		UserID:        actor.ID,
		Category:      in.Category,
		SubmittedAt:   now,
		Amount:        in.Amount,
		Status:        core.StatusPending,
		AttachmentRef: in.AttachmentRef,
		TargetName:    in.TargetName,
		Account:       in.Account,
		Detail:        in.Detail,
		Department:    in.Department,
		Rank:          in.Rank,
	}
	if err := app.Validate(); err != nil {
		return core.Application{}, err
	}

	recent, err := s.repo.ListByUser(ctx, actor.ID)
	if err != nil {
		return core.Application{}, fmt.Errorf("list recent applications: %w", err)
	}
	if err := CheckDuplicate(recent, in.Category, in.Amount, now); err != nil {
		return core.Application{}, err
	}

	if err := s.repo.Put(ctx, app); err != nil {
		return core.Application{}, fmt.Errorf("save application: %w", err)
	}
	s.publishSync(ctx, app.ID)
	return app, nil
}

// Resubmit overwrites the mutable fields of an existing application
// owned by the actor and returns it to pending, clearing any previous
// reject reason. Allowed from any prior status, including rejected,
// approved and cancelled: letting users correct and resubmit is a
// deliberate product decision (resubmitting over a cancelled record
// included). Category and amount may change; identity fields may not.
func (s *ApplicationService) Resubmit(ctx context.Context, actor Actor, appID string, in SubmitInput) (core.Application, error) {
	app, err := s.repo.Get(ctx, appID)
	if err != nil {
		return core.Application{}, err
	}
	if app.UserID != actor.ID {
		return core.Application{}, core.ErrForbidden
	}

	app.Category = in.Category
	app.Amount = in.Amount
	app.Status = core.StatusPending
	app.RejectReason = ""
	if in.AttachmentRef != "" {
		app.AttachmentRef = in.AttachmentRef
	}
	app.TargetName = in.TargetName
	app.Account = in.Account
	app.Detail = in.Detail
	app.Department = in.Department
	app.Rank = in.Rank
	if err := app.Validate(); err != nil {
		return core.Application{}, err
	}

	if err := s.repo.Put(ctx, app); err != nil {
		return core.Application{}, fmt.Errorf("save application: %w", err)
	}
	s.publishSync(ctx, app.ID)
	return app, nil
}

// Cancel moves an owned application to cancelled. Cancelling an
// already-cancelled application is a no-op, not an error.
func (s *ApplicationService) Cancel(ctx context.Context, actor Actor, appID string) (core.Application, error) {
	app, err := s.repo.Get(ctx, appID)
	if err != nil {
		return core.Application{}, err
	}
	if app.UserID != actor.ID {
		return core.Application{}, core.ErrForbidden
	}
	if app.Status == core.StatusCancelled {
		return app, nil
	}

	app.Status = core.StatusCancelled
	app.RejectReason = ""
	if err := s.repo.Put(ctx, app); err != nil {
		return core.Application{}, fmt.Errorf("save application: %w", err)
	}
	s.publishSync(ctx, app.ID)
	return app, nil
}

// Remove permanently deletes an owned application. There is no
// recovery: later lookups report not found.
func (s *ApplicationService) Remove(ctx context.Context, actor Actor, appID string) error {
	app, err := s.repo.Get(ctx, appID)
	if err != nil {
		return err
	}
	if app.UserID != actor.ID {
		return core.ErrForbidden
	}
	if err := s.repo.Delete(ctx, appID); err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	s.publishSync(ctx, appID)
	return nil
}

// ListMine returns the actor's applications, newest first.
func (s *ApplicationService) ListMine(ctx context.Context, actor Actor) ([]core.Application, error) {
	apps, err := s.repo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

func (s *ApplicationService) publishSync(ctx context.Context, appID string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishApplicationSync(ctx, appID); err != nil {
		slog.WarnContext(ctx, "Failed to publish application sync event", "app_id", appID, "error", err)
	}
}
