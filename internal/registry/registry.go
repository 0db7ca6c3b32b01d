// Package registry maps project identifiers to their remote file-search store
// and the files uploaded into it. State lives for the lifetime of the process.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"docsearch/internal/model"
)

var (
	ErrProjectIDRequired = errors.New("project id is required")
	ErrUnknownProject    = errors.New("project has no store")
	ErrClosed            = errors.New("registry is closed")
)

// StoreCreator creates remote stores. provider.FileSearch satisfies it.
type StoreCreator interface {
	CreateStore(ctx context.Context, displayName string) (string, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithDisplayNamePrefix sets the prefix of remote store display names.
func WithDisplayNamePrefix(prefix string) Option {
	return func(r *Registry) { r.prefix = prefix }
}

// WithCreateHook registers a callback invoked after every remote store creation attempt.
func WithCreateHook(fn func(projectID string, took time.Duration, err error)) Option {
	return func(r *Registry) { r.onCreate = fn }
}

// Registry owns every ProjectFileStore. It is safe for concurrent use.
// At most one remote store is ever created per project id.
type Registry struct {
	creator  StoreCreator
	prefix   string
	onCreate func(projectID string, took time.Duration, err error)
	now      func() time.Time
	locks    *keyLock

	mu       sync.RWMutex
	projects map[string]*model.ProjectFileStore
	closed   bool
}

// New returns an empty Registry creating stores through creator.
func New(creator StoreCreator, opts ...Option) *Registry {
	r := &Registry{
		creator:  creator,
		prefix:   "project_store_",
		now:      time.Now,
		locks:    newKeyLock(),
		projects: make(map[string]*model.ProjectFileStore),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreateStore returns the project's store handle, creating the remote store on first use.
// Concurrent first calls for the same project wait on a per-project lock so only one creation happens.
func (r *Registry) GetOrCreateStore(ctx context.Context, projectID string) (string, error) {
	if projectID == "" {
		return "", ErrProjectIDRequired
	}
	if name, ok, err := r.storeName(projectID); err != nil || ok {
		return name, err
	}

	unlock, err := r.locks.Lock(ctx, projectID)
	if err != nil {
		return "", err
	}
	defer unlock()

	// Another request may have created it while we waited.
	if name, ok, err := r.storeName(projectID); err != nil || ok {
		return name, err
	}

	start := r.now()
	name, err := r.creator.CreateStore(ctx, r.prefix+projectID)
	if r.onCreate != nil {
		r.onCreate(projectID, r.now().Sub(start), err)
	}
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return "", ErrClosed
	}
	r.projects[projectID] = &model.ProjectFileStore{
		ProjectID: projectID,
		StoreName: name,
		Files:     []model.UploadedFile{},
		CreatedAt: r.now().UTC(),
	}
	return name, nil
}

func (r *Registry) storeName(projectID string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return "", false, ErrClosed
	}
	if p, ok := r.projects[projectID]; ok {
		return p.StoreName, true, nil
	}
	return "", false, nil
}

// Lookup returns a copy of the project's entry.
func (r *Registry) Lookup(projectID string) (model.ProjectFileStore, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.projects[projectID]
	if !ok {
		return model.ProjectFileStore{}, false
	}
	out := *p
	out.Files = append([]model.UploadedFile(nil), p.Files...)
	return out, true
}

// Commit appends files to the project's list in the given order, as one step.
func (r *Registry) Commit(projectID string, files ...model.UploadedFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	p, ok := r.projects[projectID]
	if !ok {
		return ErrUnknownProject
	}
	p.Files = append(p.Files, files...)
	return nil
}

// Projects returns the registered project ids in lexical order.
func (r *Registry) Projects() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.projects))
	for id := range r.projects {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Close discards all state. Later calls fail with ErrClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.projects = make(map[string]*model.ProjectFileStore)
}
