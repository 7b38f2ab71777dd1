// Package sheets defines the export surface towards the HR
// spreadsheet. The google subpackage talks to the Sheets API; tests
// use in-process fakes.
package sheets

import (
	"context"

	"lofawell/internal/core"
)

// ApplicationWriter mirrors single applications into the spreadsheet,
// keyed by application id so repeated syncs update in place.
type ApplicationWriter interface {
	UpsertApplication(ctx context.Context, app core.Application) error
}

// BulkExporter rewrites the full export sheet from scratch. Used by
// the admin export operation and the worker's periodic reconciliation.
type BulkExporter interface {
	ExportAll(ctx context.Context, apps []core.Application) error
}
