package repository

import (
	"context"

	"docsearch/internal/model"
)

// HistoryRepository stores the search history of every project.
// No business logic here, only persistence operations.
type HistoryRepository interface {
	// Append stores one search record. The caller sets ID and CreatedAt.
	Append(ctx context.Context, rec *model.SearchRecord) error

	// ListByProject returns a project's records, newest first, with the project's total count.
	ListByProject(ctx context.Context, projectID string, pq PageQuery) (*PageResult[model.SearchRecord], error)
}
