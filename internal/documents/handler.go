package documents

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docsum-backend/internal/shared/apperr"
	"docsum-backend/internal/shared/server/respond"
)

// maxRequestBytes bounds a whole multipart request. Per-file limits are
// enforced by the service.
const maxRequestBytes = 64 << 20

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group. analyzeMW runs
// only in front of the analyze route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, analyzeMW ...gin.HandlerFunc) {
	rg.POST("/documents/upload", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.POST("/documents/:id/analyze", append(analyzeMW, h.analyze)...)
}

func (h *Handler) upload(c *gin.Context) {
	if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		respond.Error(c, http.StatusBadRequest, "Content must be multipart/form-data", nil)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBytes)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "Request body too large", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "Invalid multipart form", nil)
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "file field is required", nil)
		return
	}

	uploads := make([]Upload, 0, len(headers))
	for _, fh := range headers {
		up, err := readUpload(fh)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "Unable to read uploaded file", gin.H{"error": err.Error()})
			return
		}
		uploads = append(uploads, up)
	}

	results := h.Svc.CreateDocuments(c.Request.Context(), uploads)
	if len(results) == 1 {
		h.writeCreateResult(c, results[0])
		return
	}

	status := http.StatusCreated
	items := make([]respond.Envelope, 0, len(results))
	for _, res := range results {
		item := h.createEnvelope(c, res)
		if item.StatusCode != http.StatusCreated {
			status = http.StatusMultiStatus
		}
		items = append(items, item)
	}
	text := "Created"
	if status == http.StatusMultiStatus {
		text = "Some files could not be processed"
	}
	respond.JSON(c, status, text, items)
}

func (h *Handler) writeCreateResult(c *gin.Context, res CreateResult) {
	env := h.createEnvelope(c, res)
	if env.StatusCode >= 400 {
		respond.Error(c, env.StatusCode, env.Message.Text, env.Data)
		return
	}
	respond.JSON(c, env.StatusCode, env.Message.Text, env.Data)
}

// createEnvelope renders one upload outcome: created, partially created or
// rejected.
func (h *Handler) createEnvelope(c *gin.Context, res CreateResult) respond.Envelope {
	switch {
	case res.Partial():
		return respond.Envelope{
			StatusCode: http.StatusInternalServerError,
			Message:    respond.Message{Text: "File uploaded but text extraction failed"},
			Data: gin.H{
				"error":    res.Err.Error(),
				"document": toResponse(res.Document, h.Svc.AccessLinks(c.Request.Context(), res.Document)),
			},
		}
	case res.Err != nil:
		var data any
		if k := apperr.KindOf(res.Err); k == apperr.KindStorage {
			data = gin.H{"error": res.Err.Error()}
		}
		return respond.Envelope{
			StatusCode: apperr.HTTPStatus(res.Err),
			Message:    respond.Message{Text: apperr.MessageOf(res.Err)},
			Data:       data,
		}
	default:
		return respond.Envelope{
			StatusCode: http.StatusCreated,
			Message:    respond.Message{Text: "Created"},
			Data:       toResponse(res.Document, h.Svc.AccessLinks(c.Request.Context(), res.Document)),
		}
	}
}

func (h *Handler) get(c *gin.Context) {
	doc, info, err := h.Svc.ReadDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respond.Err(c, err)
		return
	}
	respond.OK(c, "Retrieval Successful", toResponse(doc, info))
}

func (h *Handler) analyze(c *gin.Context) {
	doc, err := h.Svc.AnalyzeOnDemand(c.Request.Context(), c.Param("id"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindExtraction {
			respond.Error(c, http.StatusInternalServerError, "Failed to extract document text", gin.H{"error": err.Error()})
			return
		}
		respond.Err(c, err)
		return
	}
	respond.OK(c, "Analysis complete", toResponse(doc, h.Svc.AccessLinks(c.Request.Context(), doc)))
}

func (h *Handler) list(c *gin.Context) {
	limit, offset := 0, 0
	page := queryInt(c, "page", 0)
	perPage := queryInt(c, "per_page", 0)
	if page > 0 || perPage > 0 {
		if page < 1 {
			page = 1
		}
		if perPage < 1 {
			perPage = defaultPerPage
		}
		if perPage > maxPerPage {
			perPage = maxPerPage
		}
		limit = perPage
		offset = (page - 1) * perPage
	}

	docs, err := h.Svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		respond.Err(c, err)
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc, ReadInfo{}))
	}
	respond.OK(c, "Retrieval Successful", resp)
}

func readUpload(fh *multipart.FileHeader) (Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return Upload{}, err
	}
	defer f.Close()

	// One byte past the cap is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return Upload{}, err
	}
	return Upload{
		FileName: fh.Filename,
		MimeType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func queryInt(c *gin.Context, key string, def int) int {
	v := strings.TrimSpace(c.Query(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
