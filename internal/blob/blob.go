// Package blob stores uploaded attachments (receipts, certificates)
// and hands back an opaque reference the application record carries.
package blob

import "context"

// Store saves one attachment and returns a reference: a URL for the
// cloud adapter, a server-relative path for the filesystem adapter.
type Store interface {
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
}
