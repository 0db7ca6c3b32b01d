package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docsearch/internal/model"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrProvider        = errors.New("provider error")
	ErrUnreadableInput = errors.New("unreadable input")
	ErrArchiveDisabled = errors.New("upload archive is not configured")
)

// ValidationError is a client-caused rejection carrying every issue found.
type ValidationError struct {
	Issues []model.ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("validation failed: %s", e.Issues[0].Reason)
	}
	return fmt.Sprintf("validation failed: %d issues", len(e.Issues))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError reports an unknown project, a project without files, or named files that were never uploaded.
type NotFoundError struct {
	ProjectID string
	Missing   []string
}

func (e *NotFoundError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("files not found in project %q: %s", e.ProjectID, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("project %q has no uploaded files", e.ProjectID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ProviderError wraps a failure of the remote file-search provider.
// Err may be an errors.Join of several per-file failures.
type ProviderError struct {
	Op       string
	Filename string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("provider %s %q: %v", e.Op, e.Filename, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

// Timeout reports whether the call was cut off by its deadline.
func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// UnreadableInputError reports a local I/O failure while reading an upload.
type UnreadableInputError struct {
	Filename string
	Err      error
}

func (e *UnreadableInputError) Error() string {
	return fmt.Sprintf("cannot read %q: %v", e.Filename, e.Err)
}

func (e *UnreadableInputError) Unwrap() error { return e.Err }

func (e *UnreadableInputError) Is(target error) bool { return target == ErrUnreadableInput }

// PartialUploadError is returned in partial commit mode when a batch stops midway.
// Committed lists the files that were recorded before the failure.
type PartialUploadError struct {
	Committed []model.UploadedFile
	Err       error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("upload stopped after %d file(s): %v", len(e.Committed), e.Err)
}

func (e *PartialUploadError) Unwrap() error { return e.Err }
