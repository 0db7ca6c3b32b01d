package handler

import (
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"docsearch/internal/http/middleware"
	"docsearch/internal/model"
	"docsearch/internal/service"
)

// filesField is the repeatable multipart field carrying uploaded documents.
const filesField = "files"

type searchRequest struct {
	Query     string   `json:"query"`
	Filenames []string `json:"filenames"`
	Mode      string   `json:"mode"`
}

type searchResponse struct {
	ProjectID string               `json:"project_id"`
	Query     string               `json:"query"`
	Results   []model.SearchResult `json:"results"`
}

type downloadResponse struct {
	URL string `json:"url"`
}

// uploadsFromForm turns the multipart files into uploads. A request that is not
// multipart yields an empty batch, which validation rejects.
func uploadsFromForm(c *fiber.Ctx) []model.Upload {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	headers := form.File[filesField]
	uploads := make([]model.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, uploadFromHeader(fh))
	}
	return uploads
}

func uploadFromHeader(fh *multipart.FileHeader) model.Upload {
	return model.Upload{
		Filename: fh.Filename,
		Size:     fh.Size,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// UploadDocuments godoc
// @Summary  Upload a batch of documents into the project's search store
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    project_id query    string false "Project id"
// @Param    files      formData file   true  "Documents (repeatable)"
// @Success  201 {object} model.UploadOutcome
// @Failure  400 {object} errorPayload
// @Failure  413 {object} errorPayload
// @Failure  415 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /documents [post]
func UploadDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := svc.Upload(c.UserContext(), middleware.ProjectIDFromCtx(c), uploadsFromForm(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	}
}

// ListDocuments godoc
// @Summary  List the files recorded for a project
// @Tags     documents
// @Produce  json
// @Param    project_id query string false "Project id"
// @Success  200 {object} model.ProjectFileStore
// @Failure  404 {object} errorPayload
// @Router   /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := svc.ListFiles(c.UserContext(), middleware.ProjectIDFromCtx(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// SearchDocuments godoc
// @Summary  Ask a question about all or some of the project's files
// @Tags     documents
// @Accept   json
// @Produce  json
// @Param    project_id query string        false "Project id"
// @Param    request    body  searchRequest true  "Query"
// @Success  200 {object} searchResponse
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /documents/search [post]
func SearchDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req searchRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		projectID := middleware.ProjectIDFromCtx(c)
		results, err := svc.Search(c.UserContext(), model.SearchQuery{
			ProjectID: projectID,
			Query:     req.Query,
			Filenames: req.Filenames,
			Mode:      model.SearchMode(req.Mode),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(searchResponse{ProjectID: projectID, Query: req.Query, Results: results})
	}
}

// BriefDocuments godoc
// @Summary  Upload documents and summarize every file of the project
// @Tags     documents
// @Accept   multipart/form-data
// @Produce  json
// @Param    project_id query    string false "Project id"
// @Param    files      formData file   true  "Documents (repeatable)"
// @Success  200 {object} model.Brief
// @Failure  400 {object} errorPayload
// @Failure  500 {object} errorPayload
// @Router   /documents/brief [post]
func BriefDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		brief, err := svc.Brief(c.UserContext(), middleware.ProjectIDFromCtx(c), uploadsFromForm(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(brief)
	}
}

// SearchHistory godoc
// @Summary  Paginated search history, newest first
// @Tags     documents
// @Produce  json
// @Param    project_id query string false "Project id"
// @Param    limit      query int    false "Page size" default(10)
// @Param    offset     query int    false "Offset"    default(0)
// @Success  200 {object} service.HistoryResult
// @Failure  400 {object} errorPayload
// @Router   /documents/history [get]
func SearchHistory(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.History(c.UserContext(), middleware.ProjectIDFromCtx(c), limit, offset)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// DownloadDocument godoc
// @Summary  Presigned link to the archived bytes of an uploaded file
// @Tags     documents
// @Produce  json
// @Param    project_id query string false "Project id"
// @Param    id         path  string true  "File id"
// @Success  200 {object} downloadResponse
// @Failure  400 {object} errorPayload
// @Failure  404 {object} errorPayload
// @Failure  501 {object} errorPayload
// @Router   /documents/{id}/download [get]
func DownloadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		url, err := svc.DownloadURL(c.UserContext(), middleware.ProjectIDFromCtx(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(downloadResponse{URL: url})
	}
}
