package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/genai"

	"docsearch/internal/model"
)

// fileIDMetadataKey is the custom metadata key carrying the local file id on every remote document.
const fileIDMetadataKey = "file_id"

// GeminiConfig holds configuration for the Gemini File Search provider.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// GeminiProvider implements FileSearch on top of Gemini File Search stores.
// It is safe for concurrent use.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

var _ FileSearch = (*GeminiProvider)(nil)

// NewGeminiProvider creates a provider from configuration.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	// Outbound calls carry the request span so provider latency shows up in traces.
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.Timeout,
	}
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiProvider{client: client, model: model}, nil
}

// CreateStore creates a file search store.
func (p *GeminiProvider) CreateStore(ctx context.Context, displayName string) (string, error) {
	store, err := p.client.FileSearchStores.Create(ctx, &genai.CreateFileSearchStoreConfig{
		DisplayName: displayName,
	})
	if err != nil {
		return "", fmt.Errorf("create file search store: %w", err)
	}
	if store == nil || store.Name == "" {
		return "", ErrEmptyResponse
	}
	return store.Name, nil
}

// UploadFile uploads and imports a file into a store. Ingestion continues on the
// provider side; the returned id is the document name when the operation already
// finished, otherwise the operation name.
func (p *GeminiProvider) UploadFile(ctx context.Context, req UploadRequest) (string, error) {
	op, err := p.client.FileSearchStores.UploadToFileSearchStore(ctx, req.Content, req.StoreName, &genai.UploadToFileSearchStoreConfig{
		DisplayName: req.Filename,
		MIMEType:    req.MIMEType,
		CustomMetadata: []*genai.CustomMetadata{
			{Key: fileIDMetadataKey, StringValue: req.FileID},
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload to file search store: %w", err)
	}
	if op == nil {
		return "", ErrEmptyResponse
	}
	if op.Error != nil {
		return "", fmt.Errorf("upload operation %s failed: %v", op.Name, op.Error)
	}
	if op.Done && op.Response != nil && op.Response.DocumentName != "" {
		return op.Response.DocumentName, nil
	}
	if op.Name == "" {
		return "", ErrEmptyResponse
	}
	return op.Name, nil
}

// Query asks the model a question with the File Search tool bound to the store.
func (p *GeminiProvider) Query(ctx context.Context, req QueryRequest) (Answer, error) {
	fs := &genai.FileSearch{FileSearchStoreNames: []string{req.StoreName}}
	if req.FileID != "" {
		fs.MetadataFilter = metadataFilter(req.FileID)
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(req.Query), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FileSearch: fs}},
	})
	if err != nil {
		return Answer{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return Answer{}, ErrEmptyResponse
	}

	return Answer{
		Text:      resp.Text(),
		Citations: citations(resp.Candidates[0].GroundingMetadata),
	}, nil
}

func metadataFilter(fileID string) string {
	return fmt.Sprintf("%s = %q", fileIDMetadataKey, fileID)
}

func citations(gm *genai.GroundingMetadata) []model.Citation {
	out := []model.Citation{}
	if gm == nil {
		return out
	}
	for _, chunk := range gm.GroundingChunks {
		if chunk == nil || chunk.RetrievedContext == nil {
			continue
		}
		rc := chunk.RetrievedContext
		out = append(out, model.Citation{Title: rc.Title, URI: rc.URI, Text: rc.Text})
	}
	return out
}
