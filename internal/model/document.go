package model

import (
	"bytes"
	"io"
	"time"
)

// WholeProject is the SearchResult filename used for a pooled, store-wide answer.
const WholeProject = "*"

// Upload is a raw file received from a client, before validation.
// Open must return a fresh reader positioned at the first byte on every call.
type Upload struct {
	Filename string
	// Size is the declared size in bytes; a negative value means unknown.
	Size int64
	Open func() (io.ReadCloser, error)
}

// NewUpload builds an Upload over an in-memory byte slice.
func NewUpload(filename string, data []byte) Upload {
	return Upload{
		Filename: filename,
		Size:     int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// UploadedFile is the metadata record kept for every accepted file.
// It is created during validation; RemoteFileID is set once the provider accepts the upload.
type UploadedFile struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	Filename     string    `json:"filename"`
	Extension    string    `json:"extension"`
	SizeBytes    int64     `json:"size_bytes"`
	MIMEType     string    `json:"mime_type"`
	RemoteFileID string    `json:"remote_file_id,omitempty"`
	ArchiveKey   string    `json:"archive_key,omitempty"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// ProjectFileStore is a project's remote store handle and its files in upload order.
type ProjectFileStore struct {
	ProjectID string         `json:"project_id"`
	StoreName string         `json:"store_name"`
	Files     []UploadedFile `json:"files"`
	CreatedAt time.Time      `json:"created_at"`
}

// UploadOutcome is returned by a successful upload batch.
type UploadOutcome struct {
	ProjectID string         `json:"project_id"`
	StoreName string         `json:"store_name"`
	Files     []UploadedFile `json:"files"`
}

// Brief is a generated summary over every file recorded for a project.
type Brief struct {
	ProjectID string     `json:"project_id"`
	StoreName string     `json:"store_name"`
	Filenames []string   `json:"filenames"`
	Text      string     `json:"brief"`
	Citations []Citation `json:"citations,omitempty"`
}
