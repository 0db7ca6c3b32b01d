package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docsearch/internal/config"
	"docsearch/internal/logging"
	"docsearch/internal/metrics"
	"docsearch/internal/model"
	"docsearch/internal/provider"
	provMocks "docsearch/internal/provider/mocks"
	"docsearch/internal/registry"
	"docsearch/internal/repository"
	"docsearch/internal/repository/memory"
	repoMocks "docsearch/internal/repository/mocks"
	"docsearch/internal/storage"
	storeMocks "docsearch/internal/storage/mocks"
	"docsearch/internal/validation"
)

var (
	pdfContent = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("report body "), 32)...)
	txtContent = []byte("meeting notes in plain text")
)

type fixture struct {
	svc     DocumentService
	fs      *provMocks.MockFileSearch
	reg     *registry.Registry
	archive *storeMocks.MockStorage
}

type fixtureOpt func(*Dependencies, *Options)

func withArchive() fixtureOpt {
	return func(d *Dependencies, _ *Options) { d.Archive = new(storeMocks.MockStorage) }
}

func withHistory(h repository.HistoryRepository) fixtureOpt {
	return func(d *Dependencies, _ *Options) { d.History = h }
}

func withOptions(fn func(*Options)) fixtureOpt {
	return func(_ *Dependencies, o *Options) { fn(o) }
}

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()

	fs := new(provMocks.MockFileSearch)
	reg := registry.New(fs)
	t.Cleanup(reg.Close)

	rec, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	deps := Dependencies{
		Validator: validation.FromConfig(config.UploadConfig{
			MaxFileSize:       config.DefaultMaxFileSize,
			AllowedExtensions: config.DefaultAllowedExtensions,
			AllowedMIMETypes:  config.DefaultAllowedMIMETypes,
		}),
		Registry: reg,
		Provider: fs,
		History:  memory.NewHistoryMemory(),
		Metrics:  rec,
		Logger:   logging.Discard(),
	}
	o := Options{
		DefaultProjectID: "default-project",
		Concurrency:      4,
		ProviderTimeout:  time.Second,
	}
	for _, fn := range opts {
		fn(&deps, &o)
	}

	f := &fixture{fs: fs, reg: reg, svc: NewDocumentService(deps, o)}
	if a, ok := deps.Archive.(*storeMocks.MockStorage); ok {
		f.archive = a
	}
	return f
}

func (f *fixture) expectStore(projectID, name string) *mock.Call {
	return f.fs.On("CreateStore", mock.Anything, "project_store_"+projectID).Return(name, nil).Once()
}

func (f *fixture) acceptUploads() {
	f.fs.On("UploadFile", mock.Anything, mock.Anything).
		Return(func(_ context.Context, req provider.UploadRequest) string { return "files/" + req.FileID }, nil)
}

func uploadNamed(name string) func(provider.UploadRequest) bool {
	return func(req provider.UploadRequest) bool { return req.Filename == name }
}

func TestUpload_FreshProject(t *testing.T) {
	f := newFixture(t)
	f.expectStore("p1", "fileSearchStores/p1")
	f.acceptUploads()

	out, err := f.svc.Upload(context.Background(), "p1", []model.Upload{
		model.NewUpload("report.pdf", pdfContent),
		model.NewUpload("notes.txt", txtContent),
	})

	require.NoError(t, err)
	assert.Equal(t, "p1", out.ProjectID)
	assert.Equal(t, "fileSearchStores/p1", out.StoreName)
	require.Len(t, out.Files, 2)
	assert.Equal(t, "report.pdf", out.Files[0].Filename)
	assert.Equal(t, "application/pdf", out.Files[0].MIMEType)
	assert.Equal(t, "notes.txt", out.Files[1].Filename)
	assert.NotEmpty(t, out.Files[0].RemoteFileID)
	assert.NotEqual(t, out.Files[0].RemoteFileID, out.Files[1].RemoteFileID)
	assert.Equal(t, "files/"+out.Files[0].ID, out.Files[0].RemoteFileID)
	assert.False(t, out.Files[0].UploadedAt.IsZero())

	listed, err := f.svc.ListFiles(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, out.Files, listed.Files)

	f.fs.AssertCalled(t, "UploadFile", mock.Anything, mock.MatchedBy(func(req provider.UploadRequest) bool {
		return req.Filename == "report.pdf" && req.MIMEType == "application/pdf" && req.StoreName == "fileSearchStores/p1"
	}))
	f.fs.AssertExpectations(t)
}

func TestUpload_ReusesStore(t *testing.T) {
	f := newFixture(t)
	f.expectStore("p1", "stores/one")
	f.acceptUploads()

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("a.txt", txtContent)})
	require.NoError(t, err)
	out, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("b.txt", txtContent)})
	require.NoError(t, err)

	assert.Equal(t, "stores/one", out.StoreName)
	f.fs.AssertNumberOfCalls(t, "CreateStore", 1)

	listed, err := f.svc.ListFiles(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, listed.Files, 2)
	assert.Equal(t, "a.txt", listed.Files[0].Filename)
	assert.Equal(t, "b.txt", listed.Files[1].Filename)
}

func TestUpload_DefaultProject(t *testing.T) {
	f := newFixture(t)
	f.expectStore("default-project", "stores/default")
	f.acceptUploads()

	out, err := f.svc.Upload(context.Background(), "", []model.Upload{model.NewUpload("a.md", []byte("# title\n\nbody"))})

	require.NoError(t, err)
	assert.Equal(t, "default-project", out.ProjectID)
}

func TestUpload_ValidationRejectsWholeBatch(t *testing.T) {
	tests := []struct {
		name     string
		uploads  []model.Upload
		wantRule model.RuleKind
	}{
		{
			name:     "disallowed extension",
			uploads:  []model.Upload{model.NewUpload("virus.exe", bytes.Repeat([]byte{0x4d}, 1024))},
			wantRule: model.RuleExtension,
		},
		{
			name: "file over the size limit",
			uploads: []model.Upload{{
				Filename: "huge.pdf",
				Size:     20 * 1024 * 1024,
				Open:     func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(pdfContent)), nil },
			}},
			wantRule: model.RuleSize,
		},
		{
			name: "one bad file among good ones",
			uploads: []model.Upload{
				model.NewUpload("report.pdf", pdfContent),
				model.NewUpload("virus.exe", txtContent),
			},
			wantRule: model.RuleExtension,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			out, err := f.svc.Upload(context.Background(), "p1", tt.uploads)

			assert.Nil(t, out)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.ErrorIs(t, err, ErrValidation)
			require.NotEmpty(t, ve.Issues)
			assert.Equal(t, tt.wantRule, ve.Issues[0].Rule)

			f.fs.AssertNotCalled(t, "CreateStore", mock.Anything, mock.Anything)
			f.fs.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything)
			_, ok := f.reg.Lookup("p1")
			assert.False(t, ok)
		})
	}
}

func TestUpload_UnreadableInput(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("stream reset")

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{{
		Filename: "report.pdf",
		Size:     10,
		Open:     func() (io.ReadCloser, error) { return nil, boom },
	}})

	var ue *UnreadableInputError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "report.pdf", ue.Filename)
	assert.ErrorIs(t, err, ErrUnreadableInput)
	assert.ErrorIs(t, err, boom)
	f.fs.AssertNotCalled(t, "CreateStore", mock.Anything, mock.Anything)
}

func TestUpload_StoreCreationFails(t *testing.T) {
	f := newFixture(t)
	f.fs.On("CreateStore", mock.Anything, "project_store_p1").Return("", errors.New("quota exceeded")).Once()

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("a.txt", txtContent)})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, metrics.OpCreateStore, pe.Op)
	assert.False(t, pe.Timeout())
	_, ok := f.reg.Lookup("p1")
	assert.False(t, ok)
}

func TestUpload_AtomicCommitRollsBack(t *testing.T) {
	f := newFixture(t, withArchive())
	f.expectStore("p1", "stores/p1")
	f.fs.On("UploadFile", mock.Anything, mock.MatchedBy(uploadNamed("b.txt"))).Return("", errors.New("quota exceeded"))
	f.acceptUploads()
	f.archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
	f.archive.On("Delete", mock.Anything, mock.Anything).Return(nil)

	out, err := f.svc.Upload(context.Background(), "p1", []model.Upload{
		model.NewUpload("a.txt", txtContent),
		model.NewUpload("b.txt", txtContent),
		model.NewUpload("c.txt", txtContent),
	})

	assert.Nil(t, out)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "b.txt", pe.Filename)
	var partial *PartialUploadError
	assert.False(t, errors.As(err, &partial))

	listed, err := f.svc.ListFiles(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, listed.Files)

	f.fs.AssertNumberOfCalls(t, "UploadFile", 2)
	f.archive.AssertNumberOfCalls(t, "Put", 2)
	f.archive.AssertNumberOfCalls(t, "Delete", 2)
}

func TestUpload_PartialCommitKeepsPrefix(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.CommitMode = config.CommitPartial }))
	f.expectStore("p1", "stores/p1")
	f.fs.On("UploadFile", mock.Anything, mock.MatchedBy(uploadNamed("b.txt"))).Return("", errors.New("quota exceeded"))
	f.acceptUploads()

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{
		model.NewUpload("a.txt", txtContent),
		model.NewUpload("b.txt", txtContent),
		model.NewUpload("c.txt", txtContent),
	})

	var partial *PartialUploadError
	require.ErrorAs(t, err, &partial)
	require.Len(t, partial.Committed, 1)
	assert.Equal(t, "a.txt", partial.Committed[0].Filename)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "b.txt", pe.Filename)

	listed, err := f.svc.ListFiles(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, listed.Files, 1)
	assert.Equal(t, "a.txt", listed.Files[0].Filename)
	f.fs.AssertNumberOfCalls(t, "UploadFile", 2)
}

func TestUpload_PartialCommitFirstFileFails(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.CommitMode = config.CommitPartial }))
	f.expectStore("p1", "stores/p1")
	f.fs.On("UploadFile", mock.Anything, mock.Anything).Return("", errors.New("unavailable"))

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("a.txt", txtContent)})

	var partial *PartialUploadError
	assert.False(t, errors.As(err, &partial))
	assert.ErrorIs(t, err, ErrProvider)
}

func TestUpload_ProviderTimeout(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.ProviderTimeout = 20 * time.Millisecond }))
	f.expectStore("p1", "stores/p1")
	f.fs.On("UploadFile", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ provider.UploadRequest) string {
			<-ctx.Done()
			return ""
		}, context.DeadlineExceeded)

	start := time.Now()
	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("a.txt", txtContent)})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Timeout())
	assert.Less(t, time.Since(start), time.Second)
}

func TestUpload_TimeoutReportedWhenCauseIsFlattened(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.ProviderTimeout = 20 * time.Millisecond }))
	f.expectStore("p1", "stores/p1")
	f.fs.On("UploadFile", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ provider.UploadRequest) string {
			<-ctx.Done()
			return ""
		}, errors.New("failed to upload to store: context deadline exceeded"))

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("a.txt", txtContent)})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Timeout())
	assert.Contains(t, err.Error(), "failed to upload to store")
}

func TestUpload_StoreCreationTimeoutReported(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.ProviderTimeout = 20 * time.Millisecond }))
	f.fs.On("CreateStore", mock.Anything, "project_store_p1").
		Run(func(args mock.Arguments) { <-args.Get(0).(context.Context).Done() }).
		Return("", errors.New("create store: request timed out")).Once()

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("a.txt", txtContent)})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "create_store", pe.Op)
	assert.True(t, pe.Timeout())
}

func TestUpload_ArchivesRawBytes(t *testing.T) {
	f := newFixture(t, withArchive())
	f.expectStore("p1", "stores/p1")
	f.acceptUploads()
	f.archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(o storage.PutObjectOptions) bool {
		return o.ContentType == "application/pdf" && o.Metadata["original-filename"] == "report.pdf"
	})).Return(storage.ObjectInfo{}, nil).Once()

	out, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("report.pdf", pdfContent)})

	require.NoError(t, err)
	file := out.Files[0]
	assert.Equal(t, storage.ArchiveKey("p1", file.ID, "pdf"), file.ArchiveKey)
	f.archive.AssertExpectations(t)
}

func TestUpload_ArchiveFailureStopsBeforeProvider(t *testing.T) {
	f := newFixture(t, withArchive())
	f.expectStore("p1", "stores/p1")
	f.archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, errors.New("bucket missing"))

	_, err := f.svc.Upload(context.Background(), "p1", []model.Upload{model.NewUpload("a.txt", txtContent)})

	assert.ErrorContains(t, err, "bucket missing")
	f.fs.AssertNotCalled(t, "UploadFile", mock.Anything, mock.Anything)
}

func TestUpload_ConcurrentFirstUploadsShareOneStore(t *testing.T) {
	f := newFixture(t)
	f.expectStore("p2", "stores/p2").After(30 * time.Millisecond)
	f.acceptUploads()

	var (
		wg   sync.WaitGroup
		outs [2]*model.UploadOutcome
		errs [2]error
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outs[i], errs[i] = f.svc.Upload(context.Background(), "p2", []model.Upload{model.NewUpload("doc.txt", txtContent)})
		}()
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, outs[0].StoreName, outs[1].StoreName)
	f.fs.AssertNumberOfCalls(t, "CreateStore", 1)

	listed, err := f.svc.ListFiles(context.Background(), "p2")
	require.NoError(t, err)
	assert.Len(t, listed.Files, 2)
}

func seed(t *testing.T, f *fixture, projectID string, names ...string) []model.UploadedFile {
	t.Helper()
	f.expectStore(projectID, "stores/"+projectID)
	f.acceptUploads()

	uploads := make([]model.Upload, 0, len(names))
	for _, n := range names {
		uploads = append(uploads, model.NewUpload(n, txtContent))
	}
	out, err := f.svc.Upload(context.Background(), projectID, uploads)
	require.NoError(t, err)
	return out.Files
}

func TestSearch_PerFile(t *testing.T) {
	f := newFixture(t)
	files := seed(t, f, "p1", "a.txt", "b.txt", "c.txt")
	f.fs.On("Query", mock.Anything, mock.Anything).
		Return(func(_ context.Context, req provider.QueryRequest) provider.Answer {
			return provider.Answer{
				Text:      "answer from " + req.FileID,
				Citations: []model.Citation{{Title: req.FileID}},
			}
		}, nil)

	results, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "What is the summary?"})

	require.NoError(t, err)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, files[i].Filename, r.Filename)
		assert.Equal(t, "answer from "+files[i].ID, r.Answer)
		assert.True(t, r.Matched)
	}
	f.fs.AssertNumberOfCalls(t, "Query", 3)
	f.fs.AssertCalled(t, "Query", mock.Anything, provider.QueryRequest{
		StoreName: "stores/p1",
		Query:     "What is the summary?",
		FileID:    files[1].ID,
	})

	hist, err := f.svc.History(context.Background(), "p1", 10, 0)
	require.NoError(t, err)
	require.Equal(t, 1, hist.Total)
	assert.Equal(t, model.SearchOK, hist.Items[0].Outcome)
	assert.Equal(t, 3, hist.Items[0].Targets)
	assert.Equal(t, 3, hist.Items[0].ResultCount)
}

func TestSearch_NamedSubset(t *testing.T) {
	f := newFixture(t)
	files := seed(t, f, "p1", "a.txt", "b.txt", "c.txt")
	f.fs.On("Query", mock.Anything, mock.Anything).Return(provider.Answer{Text: "yes"}, nil)

	results, err := f.svc.Search(context.Background(), model.SearchQuery{
		ProjectID: "p1",
		Query:     "anything?",
		Filenames: []string{"c.txt", "a.txt", "c.txt"},
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "c.txt", results[0].Filename)
	assert.Equal(t, "a.txt", results[1].Filename)
	f.fs.AssertCalled(t, "Query", mock.Anything, provider.QueryRequest{StoreName: "stores/p1", Query: "anything?", FileID: files[2].ID})
	f.fs.AssertNumberOfCalls(t, "Query", 2)
}

func TestSearch_MissingNamedFiles(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "p1", "a.txt")

	_, err := f.svc.Search(context.Background(), model.SearchQuery{
		ProjectID: "p1",
		Query:     "anything?",
		Filenames: []string{"a.txt", "x.pdf", "y.md"},
	})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, []string{"x.pdf", "y.md"}, nf.Missing)
	assert.ErrorIs(t, err, ErrNotFound)
	f.fs.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestSearch_EmptyQueryRejectedBeforeProvider(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "p1", "report.txt")

	for _, q := range []string{"", "   \t"} {
		_, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: q})

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, model.RuleQuery, ve.Issues[0].Rule)
	}
	f.fs.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)

	hist, err := f.svc.History(context.Background(), "p1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, model.SearchRejected, hist.Items[0].Outcome)
}

func TestSearch_UnknownMode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "q", Mode: "fuzzy"})

	assert.ErrorIs(t, err, ErrValidation)
}

func TestSearch_NoFiles(t *testing.T) {
	t.Run("unknown project", func(t *testing.T) {
		f := newFixture(t)

		results, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "What is the summary?"})

		assert.Nil(t, results)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "p1", nf.ProjectID)
	})

	t.Run("store without files", func(t *testing.T) {
		f := newFixture(t)
		f.expectStore("p1", "stores/p1")
		_, err := f.reg.GetOrCreateStore(context.Background(), "p1")
		require.NoError(t, err)

		_, err = f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "q"})

		assert.ErrorIs(t, err, ErrNotFound)
		f.fs.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
	})
}

func TestSearch_Pooled(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.SearchMode = model.SearchPooled }))
	seed(t, f, "p1", "a.txt", "b.txt")
	f.fs.On("Query", mock.Anything, provider.QueryRequest{StoreName: "stores/p1", Query: "overall?"}).
		Return(provider.Answer{Text: "both files agree"}, nil).Once()

	results, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "overall?"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.WholeProject, results[0].Filename)
	assert.Equal(t, "both files agree", results[0].Answer)
	f.fs.AssertExpectations(t)
}

func TestSearch_PooledWithSubsetRunsPerFile(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "p1", "a.txt", "b.txt")
	f.fs.On("Query", mock.Anything, mock.Anything).Return(provider.Answer{Text: "ok"}, nil)

	results, err := f.svc.Search(context.Background(), model.SearchQuery{
		ProjectID: "p1",
		Query:     "q",
		Filenames: []string{"b.txt"},
		Mode:      model.SearchPooled,
	})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b.txt", results[0].Filename)
}

func TestSearch_EmptyAnswerIsValid(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "p1", "a.txt")
	f.fs.On("Query", mock.Anything, mock.Anything).Return(provider.Answer{}, nil)

	results, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "q"})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Matched)
	assert.NotNil(t, results[0].Citations)
	assert.Empty(t, results[0].Citations)
}

func TestSearch_ProviderErrorsAreAggregated(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "p1", "a.txt", "b.txt", "c.txt")
	quota := errors.New("quota exceeded")
	malformed := errors.New("malformed response")
	f.fs.On("Query", mock.Anything, mock.MatchedBy(func(req provider.QueryRequest) bool { return req.FileID != "" })).
		Return(provider.Answer{}, nil).Once()
	f.fs.On("Query", mock.Anything, mock.Anything).Return(provider.Answer{}, quota).Once()
	f.fs.On("Query", mock.Anything, mock.Anything).Return(provider.Answer{}, malformed).Once()

	results, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "q"})

	assert.Nil(t, results)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, metrics.OpQuery, pe.Op)
	assert.ErrorIs(t, err, quota)
	assert.ErrorIs(t, err, malformed)
	assert.False(t, pe.Timeout())
	f.fs.AssertNumberOfCalls(t, "Query", 3)

	hist, err := f.svc.History(context.Background(), "p1", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, model.SearchFailed, hist.Items[0].Outcome)
}

func TestSearch_QueryTimeout(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.ProviderTimeout = 20 * time.Millisecond }))
	seed(t, f, "p1", "a.txt")
	f.fs.On("Query", mock.Anything, mock.Anything).
		Return(func(ctx context.Context, _ provider.QueryRequest) provider.Answer {
			<-ctx.Done()
			return provider.Answer{}
		}, context.DeadlineExceeded)

	_, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "q"})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.Timeout())
	f.fs.AssertNumberOfCalls(t, "Query", 1)
}

func TestSearch_BoundedConcurrency(t *testing.T) {
	f := newFixture(t, withOptions(func(o *Options) { o.Concurrency = 2 }))
	seed(t, f, "p1", "a.txt", "b.txt", "c.txt", "d.txt", "e.txt")

	var inFlight, peak atomic.Int32
	f.fs.On("Query", mock.Anything, mock.Anything).
		Return(func(_ context.Context, _ provider.QueryRequest) provider.Answer {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inFlight.Add(-1)
			return provider.Answer{Text: "ok"}
		}, nil)

	results, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "q"})

	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSearch_HistoryFailureIsNotSurfaced(t *testing.T) {
	hist := new(repoMocks.MockHistoryRepository)
	hist.On("Append", mock.Anything, mock.Anything).Return(errors.New("db down"))
	f := newFixture(t, withHistory(hist))
	seed(t, f, "p1", "a.txt")
	f.fs.On("Query", mock.Anything, mock.Anything).Return(provider.Answer{Text: "ok"}, nil)

	results, err := f.svc.Search(context.Background(), model.SearchQuery{ProjectID: "p1", Query: "q"})

	require.NoError(t, err)
	assert.Len(t, results, 1)
	hist.AssertCalled(t, "Append", mock.Anything, mock.MatchedBy(func(rec *model.SearchRecord) bool {
		return rec.ProjectID == "p1" && rec.Outcome == model.SearchOK && rec.Mode == model.SearchPerFile
	}))
}

func TestBrief(t *testing.T) {
	f := newFixture(t)
	seed(t, f, "p1", "a.txt")
	f.fs.On("Query", mock.Anything, provider.QueryRequest{
		StoreName: "stores/p1",
		Query:     "Provide a concise brief for the following documents: a.txt, b.pdf",
	}).Return(provider.Answer{Text: "Two documents about testing."}, nil).Once()

	brief, err := f.svc.Brief(context.Background(), "p1", []model.Upload{model.NewUpload("b.pdf", pdfContent)})

	require.NoError(t, err)
	assert.Equal(t, "Two documents about testing.", brief.Text)
	assert.Equal(t, []string{"a.txt", "b.pdf"}, brief.Filenames)
	assert.Equal(t, "stores/p1", brief.StoreName)
	f.fs.AssertExpectations(t)
}

func TestBrief_ValidationError(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Brief(context.Background(), "p1", nil)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, model.RuleBatch, ve.Issues[0].Rule)
	f.fs.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
}

func TestListFiles_UnknownProject(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListFiles(context.Background(), "nope")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHistory_Pagination(t *testing.T) {
	hist := new(repoMocks.MockHistoryRepository)
	f := newFixture(t, withHistory(hist))
	hist.On("ListByProject", mock.Anything, "default-project", repository.PageQuery{Limit: 10, Offset: 0}).
		Return(&repository.PageResult[model.SearchRecord]{Items: []model.SearchRecord{{ID: "1"}}, Total: 1}, nil).Once()
	hist.On("ListByProject", mock.Anything, "p1", repository.PageQuery{Limit: 5, Offset: 5}).
		Return(nil, errors.New("db fail")).Once()

	res, err := f.svc.History(context.Background(), "", 0, -1)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Limit)
	assert.Equal(t, 0, res.Offset)
	assert.Len(t, res.Items, 1)

	_, err = f.svc.History(context.Background(), "p1", 5, 5)
	assert.EqualError(t, err, "db fail")
	hist.AssertExpectations(t)
}

func TestDownloadURL(t *testing.T) {
	t.Run("archive disabled", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.DownloadURL(context.Background(), "p1", "id")

		assert.ErrorIs(t, err, ErrArchiveDisabled)
	})

	t.Run("presigns archived file", func(t *testing.T) {
		f := newFixture(t, withArchive())
		f.archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, nil)
		files := seed(t, f, "p1", "a.txt")
		f.archive.On("PresignGet", mock.Anything, files[0].ArchiveKey, 15*time.Minute).Return("https://minio.local/a", nil).Once()

		url, err := f.svc.DownloadURL(context.Background(), "p1", files[0].ID)

		require.NoError(t, err)
		assert.Equal(t, "https://minio.local/a", url)

		_, err = f.svc.DownloadURL(context.Background(), "p1", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
