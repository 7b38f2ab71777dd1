// Package google exports applications to a Google Spreadsheet using a
// service account.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"lofawell/internal/core"
	ports "lofawell/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var (
	_ ports.ApplicationWriter = (*Client)(nil)
	_ ports.BulkExporter      = (*Client)(nil)
)

var headerRow = []any{
	"id", "employee", "category", "submitted_at", "amount", "status",
	"reject_reason", "target_name", "account", "detail", "department", "rank",
}

// New creates a Sheets client. sheetBase is the sheet tab name without
// the year; rows for 2026 land on "2026 <sheetBase>".
func New(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if sheetBase == "" {
		sheetBase = "Applications"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     fmt.Sprintf("%d %s", time.Now().Year(), sheetBase),
	}, nil
}

// newSheetsService resolves service-account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// UpsertApplication updates the row holding the application id, or
// appends a new row when the id is not on the sheet yet.
func (c *Client) UpsertApplication(ctx context.Context, app core.Application) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row, err := c.findRow(ctx, app.ID)
	if err != nil {
		return err
	}

	values := &gsheet.ValueRange{Values: [][]any{applicationRow(app)}}

	if row == 0 {
		_, err = c.svc.Spreadsheets.Values.
			Append(c.spreadsheetID, fmt.Sprintf("%s!A:L", c.sheetName), values).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("append application row: %w", err)
		}
		slog.InfoContext(ctx, "Appended application to sheet", "app_id", app.ID, "sheet", c.sheetName)
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, fmt.Sprintf("%s!A%d:L%d", c.sheetName, row, row), values).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update application row: %w", err)
	}
	slog.InfoContext(ctx, "Updated application on sheet", "app_id", app.ID, "row", row)
	return nil
}

// ExportAll clears the sheet and rewrites the header plus every
// application, newest first as given.
func (c *Client) ExportAll(ctx context.Context, apps []core.Application) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	_, err := c.svc.Spreadsheets.Values.
		Clear(c.spreadsheetID, fmt.Sprintf("%s!A:L", c.sheetName), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear export sheet: %w", err)
	}

	rows := make([][]any, 0, len(apps)+1)
	rows = append(rows, headerRow)
	for _, app := range apps {
		rows = append(rows, applicationRow(app))
	}

	_, err = c.svc.Spreadsheets.Values.
		Update(c.spreadsheetID, fmt.Sprintf("%s!A1", c.sheetName), &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("write export rows: %w", err)
	}

	slog.InfoContext(ctx, "Exported applications to sheet", "count", len(apps), "sheet", c.sheetName)
	return nil
}

// findRow returns the 1-based row holding the id in column A, or 0
// when absent.
func (c *Client) findRow(ctx context.Context, id string) (int, error) {
	resp, err := c.svc.Spreadsheets.Values.
		Get(c.spreadsheetID, fmt.Sprintf("%s!A:A", c.sheetName)).
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read id column: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) == 0 {
			continue
		}
		if cell, ok := row[0].(string); ok && cell == id {
			return i + 1, nil
		}
	}
	return 0, nil
}

func applicationRow(app core.Application) []any {
	return []any{
		app.ID,
		app.UserID,
		string(app.Category),
		app.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
		strconv.FormatInt(app.Amount, 10),
		string(app.Status),
		app.RejectReason,
		app.TargetName,
		app.Account,
		app.Detail,
		app.Department,
		app.Rank,
	}
}
