package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"docsearch/internal/config"
	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/provider"
	"docsearch/internal/registry"
	"docsearch/internal/storage"
	"docsearch/internal/validation"
)

const briefPrompt = "Provide a concise brief for the following documents: "

func (s *documentService) Upload(ctx context.Context, projectID string, uploads []model.Upload) (*model.UploadOutcome, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Upload")
	defer span.End()

	projectID = s.project(projectID)
	span.SetAttributes(
		attribute.String("docsearch.project_id", projectID),
		attribute.Int("docsearch.files", len(uploads)),
	)

	out, err := s.upload(ctx, projectID, uploads)
	if err != nil {
		committed := 0
		var pe *PartialUploadError
		if errors.As(err, &pe) {
			committed = len(pe.Committed)
		}
		s.metrics.Upload(uploadOutcome(err), committed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		s.log.WarnContext(ctx, "upload_failed",
			"project_id", projectID,
			"files", len(uploads),
			"committed", committed,
			"error", err.Error(),
		)
		return nil, err
	}

	s.metrics.Upload(uploadOutcome(nil), len(out.Files))
	s.log.InfoContext(ctx, "upload_committed",
		"project_id", projectID,
		"store", out.StoreName,
		"files", len(out.Files),
	)
	return out, nil
}

func uploadOutcome(err error) string {
	var pe *PartialUploadError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "rejected"
	case errors.Is(err, ErrUnreadableInput):
		return "unreadable"
	case errors.As(err, &pe):
		return "partial"
	default:
		return "failed"
	}
}

func (s *documentService) upload(ctx context.Context, projectID string, uploads []model.Upload) (*model.UploadOutcome, error) {
	res, err := s.validator.Validate(ctx, uploads)
	if err != nil {
		var ue *validation.UnreadableError
		if errors.As(err, &ue) {
			return nil, &UnreadableInputError{Filename: ue.Filename, Err: ue.Err}
		}
		return nil, fmt.Errorf("validate: %w", err)
	}
	if !res.Valid {
		return nil, &ValidationError{Issues: res.Errors}
	}

	storeName, err := s.resolveStore(ctx, projectID)
	if err != nil {
		return nil, err
	}

	partial := s.opts.CommitMode == config.CommitPartial
	done := make([]model.UploadedFile, 0, len(res.Files))
	for i, f := range res.Files {
		f.ProjectID = projectID
		stored, err := s.storeFile(ctx, storeName, f, uploads[i])
		if err != nil {
			if !partial {
				s.rollback(ctx, done)
				return nil, err
			}
			if len(done) == 0 {
				return nil, err
			}
			return nil, &PartialUploadError{Committed: done, Err: err}
		}
		if partial {
			if err := s.registry.Commit(projectID, stored); err != nil {
				return nil, fmt.Errorf("commit %q: %w", stored.Filename, err)
			}
		}
		done = append(done, stored)
	}

	if !partial {
		if err := s.registry.Commit(projectID, done...); err != nil {
			s.rollback(ctx, done)
			return nil, fmt.Errorf("commit batch: %w", err)
		}
	}

	return &model.UploadOutcome{ProjectID: projectID, StoreName: storeName, Files: done}, nil
}

// resolveStore returns the project's store, creating it under the provider timeout.
func (s *documentService) resolveStore(ctx context.Context, projectID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	name, err := s.registry.GetOrCreateStore(ctx, projectID)
	err = withContextErr(ctx, err)
	if err == nil {
		return name, nil
	}
	if errors.Is(err, registry.ErrClosed) || errors.Is(err, registry.ErrProjectIDRequired) {
		return "", fmt.Errorf("resolve store: %w", err)
	}
	return "", &ProviderError{Op: metrics.OpCreateStore, Err: err}
}

// storeFile archives the raw bytes when an archive is configured, then uploads the file to the provider.
func (s *documentService) storeFile(ctx context.Context, storeName string, f model.UploadedFile, u model.Upload) (model.UploadedFile, error) {
	if s.archive != nil {
		key, err := s.archiveFile(ctx, f, u)
		if err != nil {
			return f, err
		}
		f.ArchiveKey = key
	}

	rc, err := u.Open()
	if err != nil {
		s.discardArchive(ctx, f)
		return f, &UnreadableInputError{Filename: f.Filename, Err: err}
	}
	defer rc.Close()

	var remoteID string
	err = s.callProvider(ctx, metrics.OpUpload, func(ctx context.Context) error {
		id, err := s.provider.UploadFile(ctx, provider.UploadRequest{
			StoreName: storeName,
			FileID:    f.ID,
			Filename:  f.Filename,
			MIMEType:  f.MIMEType,
			Content:   rc,
		})
		if err == nil && id == "" {
			err = provider.ErrEmptyResponse
		}
		remoteID = id
		return err
	})
	if err != nil {
		s.discardArchive(ctx, f)
		return f, &ProviderError{Op: metrics.OpUpload, Filename: f.Filename, Err: err}
	}

	f.RemoteFileID = remoteID
	f.UploadedAt = s.now().UTC()
	return f, nil
}

func (s *documentService) archiveFile(ctx context.Context, f model.UploadedFile, u model.Upload) (string, error) {
	rc, err := u.Open()
	if err != nil {
		return "", &UnreadableInputError{Filename: f.Filename, Err: err}
	}
	defer rc.Close()

	key := storage.ArchiveKey(f.ProjectID, f.ID, f.Extension)
	_, err = s.archive.Put(ctx, key, rc, storage.PutObjectOptions{
		Size:        f.SizeBytes,
		ContentType: f.MIMEType,
		Metadata: map[string]string{
			"original-filename": f.Filename,
			"project-id":        f.ProjectID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive %q: %w", f.Filename, err)
	}
	return key, nil
}

// rollback undoes the local side effects of an abandoned atomic batch.
// Remote files cannot be removed through the provider and are logged as orphans.
func (s *documentService) rollback(ctx context.Context, files []model.UploadedFile) {
	ctx = context.WithoutCancel(ctx)
	for _, f := range files {
		s.discardArchive(ctx, f)
		s.log.WarnContext(ctx, "upload_orphaned",
			"project_id", f.ProjectID,
			"filename", f.Filename,
			"remote_file_id", f.RemoteFileID,
		)
	}
}

func (s *documentService) discardArchive(ctx context.Context, f model.UploadedFile) {
	if s.archive == nil || f.ArchiveKey == "" {
		return
	}
	if err := s.archive.Delete(context.WithoutCancel(ctx), f.ArchiveKey); err != nil {
		s.log.ErrorContext(ctx, "archive_delete_failed",
			"key", f.ArchiveKey,
			"error", err.Error(),
		)
	}
}

// Brief uploads the batch, then asks the provider for a summary over every file recorded for the project.
func (s *documentService) Brief(ctx context.Context, projectID string, uploads []model.Upload) (*model.Brief, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Brief")
	defer span.End()

	projectID = s.project(projectID)
	out, err := s.Upload(ctx, projectID, uploads)
	if err != nil {
		return nil, err
	}

	p, ok := s.registry.Lookup(projectID)
	if !ok || len(p.Files) == 0 {
		return nil, &NotFoundError{ProjectID: projectID}
	}
	names := distinctFilenames(p.Files)

	var ans provider.Answer
	err = s.callProvider(ctx, metrics.OpQuery, func(ctx context.Context) error {
		var err error
		ans, err = s.provider.Query(ctx, provider.QueryRequest{
			StoreName: out.StoreName,
			Query:     briefPrompt + strings.Join(names, ", "),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "brief failed")
		return nil, &ProviderError{Op: "brief", Err: err}
	}

	return &model.Brief{
		ProjectID: projectID,
		StoreName: out.StoreName,
		Filenames: names,
		Text:      ans.Text,
		Citations: ans.Citations,
	}, nil
}

func distinctFilenames(files []model.UploadedFile) []string {
	seen := make(map[string]struct{}, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		if _, ok := seen[f.Filename]; ok {
			continue
		}
		seen[f.Filename] = struct{}{}
		out = append(out, f.Filename)
	}
	return out
}
