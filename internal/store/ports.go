// Package store defines the narrow persistence ports the engine talks
// through. Adapters live in subpackages (sqlite, memory); the engine
// never assumes more than equality filtering and full scans.
package store

import (
	"context"

	"lofawell/internal/core"
)

type (
	// ApplicationRepository is a document-style store keyed by
	// application id. Put is an upsert with last-write-wins semantics.
	ApplicationRepository interface {
		Get(ctx context.Context, id string) (core.Application, error)
		Put(ctx context.Context, app core.Application) error
		Delete(ctx context.Context, id string) error
		ListByUser(ctx context.Context, userID string) ([]core.Application, error)
		ListAll(ctx context.Context) ([]core.Application, error)
	}

	// UserDirectory resolves employees, notably their notification
	// address and admin role.
	UserDirectory interface {
		GetUser(ctx context.Context, id string) (core.User, error)
		PutUser(ctx context.Context, u core.User) error
	}

	// SettingsStore keeps the announcement text and the versioned
	// policy-document revisions.
	SettingsStore interface {
		Announcement(ctx context.Context) (string, error)
		SetAnnouncement(ctx context.Context, text string) error
		SavePolicyRevision(ctx context.Context, version string, document []byte) error
		LatestPolicyRevision(ctx context.Context) (version string, document []byte, err error)
	}
)
