package memory

import (
	"context"
	"sync"

	"docsearch/internal/model"
	"docsearch/internal/repository"
)

// HistoryMemory keeps search history in process memory. It is used when no database is configured.
type HistoryMemory struct {
	mu      sync.RWMutex
	records map[string][]model.SearchRecord
}

// NewHistoryMemory returns an empty in-memory history.
func NewHistoryMemory() *HistoryMemory {
	return &HistoryMemory{records: make(map[string][]model.SearchRecord)}
}

var _ repository.HistoryRepository = (*HistoryMemory)(nil)

func (h *HistoryMemory) Append(_ context.Context, rec *model.SearchRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records[rec.ProjectID] = append(h.records[rec.ProjectID], *rec)
	return nil
}

func (h *HistoryMemory) ListByProject(_ context.Context, projectID string, pq repository.PageQuery) (*repository.PageResult[model.SearchRecord], error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	all := h.records[projectID]
	total := len(all)
	items := make([]model.SearchRecord, 0)
	// Records are stored oldest first; walk backwards for newest first.
	for i := total - 1 - pq.Offset; i >= 0 && len(items) < pq.Limit; i-- {
		items = append(items, all[i])
	}
	return &repository.PageResult[model.SearchRecord]{Items: items, Total: total}, nil
}
