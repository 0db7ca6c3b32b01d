package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/provider"
)

func (s *documentService) Search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Search")
	defer span.End()

	q.ProjectID = s.project(q.ProjectID)
	if q.Mode == "" {
		q.Mode = s.opts.SearchMode
	}
	span.SetAttributes(
		attribute.String("docsearch.project_id", q.ProjectID),
		attribute.String("docsearch.search_mode", string(q.Mode)),
	)

	results, targets, err := s.search(ctx, q)
	outcome := searchOutcome(err)
	s.metrics.Search(string(q.Mode), outcome)
	s.record(ctx, q, targets, len(results), outcome)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		s.log.WarnContext(ctx, "search_failed",
			"project_id", q.ProjectID,
			"mode", string(q.Mode),
			"targets", targets,
			"outcome", outcome,
			"error", err.Error(),
		)
		return nil, err
	}
	s.log.InfoContext(ctx, "search_completed",
		"project_id", q.ProjectID,
		"mode", string(q.Mode),
		"targets", targets,
		"results", len(results),
	)
	return results, nil
}

func searchOutcome(err error) string {
	switch {
	case err == nil:
		return model.SearchOK
	case errors.Is(err, ErrValidation):
		return model.SearchRejected
	case errors.Is(err, ErrNotFound):
		return model.SearchNotFound
	default:
		return model.SearchFailed
	}
}

// search returns the results and the number of provider queries it dispatched.
func (s *documentService) search(ctx context.Context, q model.SearchQuery) ([]model.SearchResult, int, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, 0, &ValidationError{Issues: []model.ValidationIssue{{
			Rule:   model.RuleQuery,
			Reason: "query must not be empty",
		}}}
	}
	if q.Mode != model.SearchPerFile && q.Mode != model.SearchPooled {
		return nil, 0, &ValidationError{Issues: []model.ValidationIssue{{
			Rule:   model.RuleQuery,
			Reason: fmt.Sprintf("unknown search mode %q", q.Mode),
		}}}
	}

	p, ok := s.registry.Lookup(q.ProjectID)
	if !ok || len(p.Files) == 0 {
		return nil, 0, &NotFoundError{ProjectID: q.ProjectID}
	}

	if q.Mode == model.SearchPooled && len(q.Filenames) == 0 {
		res, err := s.queryOne(ctx, p.StoreName, q.Query, model.WholeProject, "")
		if err != nil {
			return nil, 1, err
		}
		return []model.SearchResult{res}, 1, nil
	}

	targets, err := selectTargets(q.ProjectID, p.Files, q.Filenames)
	if err != nil {
		return nil, 0, err
	}

	results := make([]model.SearchResult, len(targets))
	errs := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i, f := range targets {
		g.Go(func() error {
			results[i], errs[i] = s.queryOne(ctx, p.StoreName, q.Query, f.Filename, f.ID)
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, len(targets), &ProviderError{Op: metrics.OpQuery, Err: err}
	}
	return results, len(targets), nil
}

// queryOne asks one question, scoped to fileID unless it is empty.
func (s *documentService) queryOne(ctx context.Context, storeName, query, filename, fileID string) (model.SearchResult, error) {
	var ans provider.Answer
	err := s.callProvider(ctx, metrics.OpQuery, func(ctx context.Context) error {
		var err error
		ans, err = s.provider.Query(ctx, provider.QueryRequest{
			StoreName: storeName,
			Query:     query,
			FileID:    fileID,
		})
		return err
	})
	if err != nil {
		return model.SearchResult{}, &ProviderError{Op: metrics.OpQuery, Filename: filename, Err: err}
	}

	citations := ans.Citations
	if citations == nil {
		citations = []model.Citation{}
	}
	return model.SearchResult{
		Filename:  filename,
		Answer:    ans.Text,
		Citations: citations,
		Matched:   strings.TrimSpace(ans.Text) != "" || len(ans.Citations) > 0,
	}, nil
}

// selectTargets resolves the files a search runs against.
// Without names every recorded file is a target, in upload order. Named files are
// taken in request order, duplicates dropped, each resolved to its latest upload.
func selectTargets(projectID string, files []model.UploadedFile, names []string) ([]model.UploadedFile, error) {
	if len(names) == 0 {
		return files, nil
	}

	latest := make(map[string]model.UploadedFile, len(files))
	for _, f := range files {
		latest[f.Filename] = f
	}

	var (
		targets []model.UploadedFile
		missing []string
		seen    = make(map[string]struct{}, len(names))
	)
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		f, ok := latest[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		targets = append(targets, f)
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{ProjectID: projectID, Missing: missing}
	}
	return targets, nil
}

// record appends the search to history. Failures are logged and never reach the caller.
func (s *documentService) record(ctx context.Context, q model.SearchQuery, targets, results int, outcome string) {
	if s.history == nil {
		return
	}
	rec := &model.SearchRecord{
		ID:          uuid.NewString(),
		ProjectID:   q.ProjectID,
		Query:       q.Query,
		Mode:        q.Mode,
		Targets:     targets,
		ResultCount: results,
		Outcome:     outcome,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.history.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.log.ErrorContext(ctx, "search_history_append_failed",
			"project_id", q.ProjectID,
			"error", err.Error(),
		)
	}
}
