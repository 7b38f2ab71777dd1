package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"lofawell/internal/core"
	"lofawell/internal/store"
)

// Decision is an admin verdict on a pending application.
type Decision struct {
	AppID  string
	Status core.Status // StatusApproved or StatusRejected
	Reason string      // required when rejecting
}

// Notification is the event emitted after a decision is applied. The
// address is already resolved; transports only deliver.
type Notification struct {
	AppID    string
	To       string
	Subject  string
	Body     string
	Decision core.Status
}

// Notifier delivers decision notifications. Implementations: the AMQP
// publisher (production) and direct sinks. Errors are logged by the
// caller and never fail the review.
type Notifier interface {
	NotifyDecision(ctx context.Context, n Notification) error
}

// ReviewService applies admin decisions and triggers best-effort
// notification of the application owner.
type ReviewService struct {
	repo     store.ApplicationRepository
	users    store.UserDirectory
	notifier Notifier
}

func NewReviewService(repo store.ApplicationRepository, users store.UserDirectory, notifier Notifier) *ReviewService {
	return &ReviewService{repo: repo, users: users, notifier: notifier}
}

// Decide applies an approve/reject transition. Only an admin actor may
// call it; rejecting requires a non-empty reason; approving clears any
// previous one. The state write must succeed or the whole operation
// fails; the notification afterwards is best-effort and its failure is
// only logged.
func (s *ReviewService) Decide(ctx context.Context, actor Actor, d Decision) (core.Application, error) {
	if !actor.Admin {
		return core.Application{}, core.ErrForbidden
	}
	switch d.Status {
	case core.StatusApproved:
		d.Reason = ""
	case core.StatusRejected:
		if strings.TrimSpace(d.Reason) == "" {
			return core.Application{}, core.ErrEmptyRejectReason
		}
	default:
		return core.Application{}, fmt.Errorf("%w: decision must approve or reject", core.ErrValidation)
	}

	app, err := s.repo.Get(ctx, d.AppID)
	if err != nil {
		return core.Application{}, err
	}

	app.Status = d.Status
	app.RejectReason = d.Reason
	if err := s.repo.Put(ctx, app); err != nil {
		return core.Application{}, fmt.Errorf("save decision: %w", err)
	}

	s.notify(ctx, app)
	return app, nil
}

func (s *ReviewService) notify(ctx context.Context, app core.Application) {
	if s.notifier == nil {
		return
	}
	owner, err := s.users.GetUser(ctx, app.UserID)
	if err != nil {
		slog.WarnContext(ctx, "Decision notification skipped: owner lookup failed",
			"app_id", app.ID, "user_id", app.UserID, "error", err)
		return
	}
	if owner.Email == "" {
		slog.InfoContext(ctx, "Decision notification skipped: owner has no address",
			"app_id", app.ID, "user_id", app.UserID)
		return
	}

	n := Notification{
		AppID:    app.ID,
		To:       owner.Email,
		Decision: app.Status,
		Subject:  decisionSubject(app),
		Body:     decisionBody(app, owner),
	}
	if err := s.notifier.NotifyDecision(ctx, n); err != nil {
		slog.WarnContext(ctx, "Decision notification failed",
			"app_id", app.ID, "user_id", app.UserID, "error", err)
	}
}

func decisionSubject(app core.Application) string {
	verdict := "approved"
	if app.Status == core.StatusRejected {
		verdict = "rejected"
	}
	return fmt.Sprintf("[welfare] %s application %s", app.Category, verdict)
}

func decisionBody(app core.Application, owner core.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", owner.Name)
	fmt.Fprintf(&b, "Your %s application (#%s, amount %d) has been %s.\n",
		app.Category, app.ID, app.Amount, app.Status)
	if app.Status == core.StatusRejected {
		fmt.Fprintf(&b, "Reason: %s\n", app.RejectReason)
	}
	return b.String()
}
