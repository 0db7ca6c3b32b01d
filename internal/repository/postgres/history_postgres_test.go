package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"docsearch/internal/model"
	"docsearch/internal/repository"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

var historyColumns = []string{"id", "project_id", "query", "mode", "targets", "result_count", "outcome", "created_at"}

func TestHistoryPostgres_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewHistoryPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()
	rec := &model.SearchRecord{
		ID:          "rec-1",
		ProjectID:   "p1",
		Query:       "What is the summary?",
		Mode:        model.SearchPerFile,
		Targets:     2,
		ResultCount: 2,
		Outcome:     model.SearchOK,
		CreatedAt:   now,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO search_history").
			WithArgs(rec.ID, rec.ProjectID, rec.Query, "per_file", rec.Targets, rec.ResultCount, rec.Outcome, rec.CreatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))

		assert.NoError(t, repo.Append(ctx, rec))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("error", func(t *testing.T) {
		mock.ExpectExec("INSERT INTO search_history").WillReturnError(errors.New("db down"))

		assert.EqualError(t, repo.Append(ctx, rec), "db down")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHistoryPostgres_ListByProject(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewHistoryPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM search_history").
			WithArgs("p1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		rows := sqlmock.NewRows(historyColumns).
			AddRow("rec-2", "p1", "second", "pooled", 1, 1, "ok", now).
			AddRow("rec-1", "p1", "first", "per_file", 2, 0, "provider_error", now.Add(-time.Minute))
		mock.ExpectQuery("SELECT id, project_id, query").
			WithArgs("p1", 10, 0).
			WillReturnRows(rows)

		res, err := repo.ListByProject(ctx, "p1", repository.PageQuery{Limit: 10, Offset: 0})

		assert.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		assert.Len(t, res.Items, 2)
		assert.Equal(t, "rec-2", res.Items[0].ID)
		assert.Equal(t, model.SearchPooled, res.Items[0].Mode)
		assert.Equal(t, model.SearchFailed, res.Items[1].Outcome)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM search_history").
			WillReturnError(errors.New("count failed"))

		res, err := repo.ListByProject(ctx, "p1", repository.PageQuery{Limit: 10})

		assert.Error(t, err)
		assert.Nil(t, res)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scan error", func(t *testing.T) {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM search_history").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mock.ExpectQuery("SELECT id, project_id, query").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("only-id"))

		res, err := repo.ListByProject(ctx, "p1", repository.PageQuery{Limit: 10})

		assert.Error(t, err)
		assert.Nil(t, res)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
