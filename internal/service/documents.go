// Package service holds the document use cases: validated uploads into a
// project's remote store, searches across the uploaded files, and the
// supporting listings.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"docsearch/internal/config"
	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/provider"
	"docsearch/internal/registry"
	"docsearch/internal/repository"
	"docsearch/internal/storage"
	"docsearch/internal/validation"
)

var tracer = otel.Tracer("docsearch/internal/service")

// HistoryResult is the service-level DTO for a page of search history.
type HistoryResult struct {
	Items  []model.SearchRecord `json:"data"`
	Total  int                  `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload validates the batch and, if every file passes, uploads it into the project's store.
	// An empty projectID selects the default project.
	Upload(ctx context.Context, projectID string, uploads []model.Upload) (*model.UploadOutcome, error)

	// Search answers a query against all or a named subset of the project's files.
	Search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, error)

	// Brief uploads the batch and then summarizes every file recorded for the project.
	Brief(ctx context.Context, projectID string, uploads []model.Upload) (*model.Brief, error)

	// ListFiles returns the project's store and its files in upload order.
	ListFiles(ctx context.Context, projectID string) (*model.ProjectFileStore, error)

	// History returns the project's searches, newest first.
	History(ctx context.Context, projectID string, limit, offset int) (*HistoryResult, error)

	// DownloadURL returns a presigned link to the archived bytes of an uploaded file.
	DownloadURL(ctx context.Context, projectID, fileID string) (string, error)
}

// Options are the fixed settings of a documents service.
type Options struct {
	DefaultProjectID string
	CommitMode       string
	SearchMode       model.SearchMode
	Concurrency      int
	ProviderTimeout  time.Duration
	DownloadExpiry   time.Duration
}

// OptionsFromConfig derives service options from the application config.
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		DefaultProjectID: cfg.DefaultProjectID,
		CommitMode:       cfg.Upload.CommitMode,
		SearchMode:       model.SearchMode(cfg.Search.Mode),
		Concurrency:      cfg.Search.Concurrency,
		ProviderTimeout:  cfg.Gemini.Timeout,
	}
}

// Dependencies are the collaborators of a documents service.
// Archive, Metrics and Logger may be nil.
type Dependencies struct {
	Validator *validation.Validator
	Registry  *registry.Registry
	Provider  provider.FileSearch
	History   repository.HistoryRepository
	Archive   storage.Storage
	Metrics   *metrics.Recorder
	Logger    *slog.Logger
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	validator *validation.Validator
	registry  *registry.Registry
	provider  provider.FileSearch
	history   repository.HistoryRepository
	archive   storage.Storage
	metrics   *metrics.Recorder
	log       *slog.Logger
	opts      Options
	now       func() time.Time
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(deps Dependencies, opts Options) DocumentService {
	if opts.CommitMode == "" {
		opts.CommitMode = config.CommitAtomic
	}
	if opts.SearchMode == "" {
		opts.SearchMode = model.SearchPerFile
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = 60 * time.Second
	}
	if opts.DownloadExpiry <= 0 {
		opts.DownloadExpiry = 15 * time.Minute
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &documentService{
		validator: deps.Validator,
		registry:  deps.Registry,
		provider:  deps.Provider,
		history:   deps.History,
		archive:   deps.Archive,
		metrics:   deps.Metrics,
		log:       log.With("component", "documents"),
		opts:      opts,
		now:       time.Now,
	}
}

func (s *documentService) project(id string) string {
	if id == "" {
		return s.opts.DefaultProjectID
	}
	return id
}

// callProvider runs fn under the per-call timeout and records its latency.
func (s *documentService) callProvider(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProviderTimeout)
	defer cancel()

	start := s.now()
	err := withContextErr(ctx, fn(ctx))
	s.metrics.ProviderCall(op, s.now().Sub(start), err)
	return err
}

// withContextErr attaches ctx's error to err when the provider client flattened it into text.
func withContextErr(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil && !errors.Is(err, cerr) {
		return errors.Join(err, cerr)
	}
	return err
}

// ListFiles returns a snapshot of the project's files.
func (s *documentService) ListFiles(_ context.Context, projectID string) (*model.ProjectFileStore, error) {
	projectID = s.project(projectID)
	p, ok := s.registry.Lookup(projectID)
	if !ok {
		return nil, &NotFoundError{ProjectID: projectID}
	}
	return &p, nil
}

// History returns paginated search history without exposing repository types.
func (s *documentService) History(ctx context.Context, projectID string, limit, offset int) (*HistoryResult, error) {
	projectID = s.project(projectID)
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.history.ListByProject(ctx, projectID, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Items: res.Items, Total: res.Total, Limit: limit, Offset: offset}, nil
}

func (s *documentService) DownloadURL(ctx context.Context, projectID, fileID string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	projectID = s.project(projectID)
	p, ok := s.registry.Lookup(projectID)
	if !ok {
		return "", &NotFoundError{ProjectID: projectID}
	}
	for _, f := range p.Files {
		if f.ID == fileID && f.ArchiveKey != "" {
			return s.archive.PresignGet(ctx, f.ArchiveKey, s.opts.DownloadExpiry)
		}
	}
	return "", &NotFoundError{ProjectID: projectID, Missing: []string{fileID}}
}
