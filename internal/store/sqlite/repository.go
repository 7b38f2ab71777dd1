// Package sqlite persists applications, users and settings in a local
// SQLite file. Writes are upserts keyed by id (last write wins), which
// matches the engine's document-style port.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lofawell/internal/core"

	_ "modernc.org/sqlite"
)

const (
	settingAnnouncement = "announcement"
)

type Repository struct {
	db *sql.DB
}

// New opens (creating if needed) the database at dbPath and runs
// pending migrations.
func New(dbPath string) (*Repository, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

const applicationColumns = `id, user_id, category, submitted_at, amount, status,
	reject_reason, attachment_ref, target_name, account, detail, department, rank`

func scanApplication(row interface{ Scan(...any) error }) (core.Application, error) {
	var a core.Application
	var submittedAt time.Time
	err := row.Scan(&a.ID, &a.UserID, &a.Category, &submittedAt, &a.Amount, &a.Status,
		&a.RejectReason, &a.AttachmentRef, &a.TargetName, &a.Account, &a.Detail,
		&a.Department, &a.Rank)
	if err != nil {
		return core.Application{}, err
	}
	a.SubmittedAt = submittedAt.UTC()
	return a, nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Application, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id)
	app, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Application{}, fmt.Errorf("application %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Application{}, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (r *Repository) Put(ctx context.Context, app core.Application) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			category = excluded.category,
			submitted_at = excluded.submitted_at,
			amount = excluded.amount,
			status = excluded.status,
			reject_reason = excluded.reject_reason,
			attachment_ref = excluded.attachment_ref,
			target_name = excluded.target_name,
			account = excluded.account,
			detail = excluded.detail,
			department = excluded.department,
			rank = excluded.rank`,
		app.ID, app.UserID, app.Category, app.SubmittedAt.UTC(), app.Amount, app.Status,
		app.RejectReason, app.AttachmentRef, app.TargetName, app.Account, app.Detail,
		app.Department, app.Rank)
	if err != nil {
		return fmt.Errorf("put application: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM applications WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete application: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("application %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]core.Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE user_id = ? ORDER BY submitted_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications by user: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func (r *Repository) ListAll(ctx context.Context) ([]core.Application, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+applicationColumns+` FROM applications ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()
	return collectApplications(rows)
}

func collectApplications(rows *sql.Rows) ([]core.Application, error) {
	var out []core.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	var u core.User
	var admin int
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, department, rank, join_date, phone, email, is_admin
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Name, &u.Department, &u.Rank, &u.JoinDate, &u.Phone, &u.Email, &admin)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Admin = admin != 0
	return u, nil
}

func (r *Repository) PutUser(ctx context.Context, u core.User) error {
	admin := 0
	if u.Admin {
		admin = 1
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, department, rank, join_date, phone, email, is_admin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			rank = excluded.rank,
			join_date = excluded.join_date,
			phone = excluded.phone,
			email = excluded.email,
			is_admin = excluded.is_admin`,
		u.ID, u.Name, u.Department, u.Rank, u.JoinDate, u.Phone, u.Email, admin)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (r *Repository) Announcement(ctx context.Context) (string, error) {
	var text string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE key = ?`, settingAnnouncement).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get announcement: %w", err)
	}
	return text, nil
}

func (r *Repository) SetAnnouncement(ctx context.Context, text string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		settingAnnouncement, text)
	if err != nil {
		return fmt.Errorf("set announcement: %w", err)
	}
	return nil
}

func (r *Repository) SavePolicyRevision(ctx context.Context, version string, document []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO policy_revisions (version, document) VALUES (?, ?)
		ON CONFLICT(version) DO UPDATE SET document = excluded.document`,
		version, document)
	if err != nil {
		return fmt.Errorf("save policy revision: %w", err)
	}
	return nil
}

func (r *Repository) LatestPolicyRevision(ctx context.Context) (string, []byte, error) {
	var version string
	var document []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT version, document FROM policy_revisions
		ORDER BY created_at DESC, version DESC LIMIT 1`).Scan(&version, &document)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("policy revision: %w", core.ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("latest policy revision: %w", err)
	}
	return version, document, nil
}
