// Package provider talks to the remote file-search service that stores
// uploaded documents and answers natural-language questions about them.
package provider

import (
	"context"
	"errors"
	"io"

	"docsearch/internal/model"
)

// ErrEmptyResponse is returned when the provider answers without any candidate.
var ErrEmptyResponse = errors.New("provider returned an empty response")

// UploadRequest describes one file sent into a remote store.
type UploadRequest struct {
	StoreName string
	// FileID is the local identifier, attached as metadata so queries can target the file.
	FileID   string
	Filename string
	MIMEType string
	Content  io.Reader
}

// QueryRequest is a question against a store, optionally scoped to a single file.
type QueryRequest struct {
	StoreName string
	Query     string
	// FileID scopes the query to one uploaded file; empty means the whole store.
	FileID string
}

// Answer is the provider's grounded response.
type Answer struct {
	Text      string
	Citations []model.Citation
}

// FileSearch is the set of remote capabilities the documents service depends on.
type FileSearch interface {
	// CreateStore creates a new remote store and returns its handle.
	CreateStore(ctx context.Context, displayName string) (string, error)
	// UploadFile ingests a file into a store and returns the remote identifier.
	UploadFile(ctx context.Context, req UploadRequest) (string, error)
	// Query asks a question grounded on the store's contents.
	Query(ctx context.Context, req QueryRequest) (Answer, error)
}
