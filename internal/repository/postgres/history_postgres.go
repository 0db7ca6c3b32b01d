package postgres

import (
	"context"
	"database/sql"

	"docsearch/internal/model"
	"docsearch/internal/repository"
)

// HistoryPostgres is a PostgreSQL implementation of repository.HistoryRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type HistoryPostgres struct {
	db *sql.DB
}

// NewHistoryPostgres creates a new HistoryPostgres repository.
func NewHistoryPostgres(db *sql.DB) *HistoryPostgres {
	return &HistoryPostgres{db: db}
}

var _ repository.HistoryRepository = (*HistoryPostgres)(nil)

// Append inserts a search record.
func (r *HistoryPostgres) Append(ctx context.Context, rec *model.SearchRecord) error {
	const q = `
		INSERT INTO search_history (id, project_id, query, mode, targets, result_count, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, q,
		rec.ID,
		rec.ProjectID,
		rec.Query,
		string(rec.Mode),
		rec.Targets,
		rec.ResultCount,
		rec.Outcome,
		rec.CreatedAt,
	)
	return err
}

// ListByProject returns a project's records using LIMIT/OFFSET pagination and a total count.
func (r *HistoryPostgres) ListByProject(ctx context.Context, projectID string, pq repository.PageQuery) (*repository.PageResult[model.SearchRecord], error) {
	const qCount = `SELECT COUNT(*) FROM search_history WHERE project_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, qCount, projectID).Scan(&total); err != nil {
		return nil, err
	}

	const qList = `
		SELECT id, project_id, query, mode, targets, result_count, outcome, created_at
		FROM search_history
		WHERE project_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.QueryContext(ctx, qList, projectID, pq.Limit, pq.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.SearchRecord, 0)
	for rows.Next() {
		var (
			rec  model.SearchRecord
			mode string
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.ProjectID,
			&rec.Query,
			&mode,
			&rec.Targets,
			&rec.ResultCount,
			&rec.Outcome,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Mode = model.SearchMode(mode)
		items = append(items, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.SearchRecord]{
		Items: items,
		Total: total,
	}, nil
}
