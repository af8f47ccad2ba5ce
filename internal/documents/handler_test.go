package documents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"docsum-backend/internal/analysis"
	"docsum-backend/internal/extract"
	"docsum-backend/internal/shared/apperr"
	"docsum-backend/internal/shared/storage/object"
)

type envelope struct {
	StatusCode int `json:"statusCode"`
	Message    struct {
		Text string `json:"text"`
	} `json:"message"`
	Data json.RawMessage `json:"data"`
}

type filePart struct {
	name        string
	contentType string
	data        []byte
}

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func multipartRequest(t *testing.T, parts ...filePart) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+p.name+`"`)
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := w.Write(p.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, resp.Body.String())
	}
	if env.StatusCode != resp.Code {
		t.Fatalf("envelope statusCode %d != http status %d", env.StatusCode, resp.Code)
	}
	return env
}

func TestUploadSingleCreated(t *testing.T) {
	svc, _ := newTestService(newMemStore(), &scriptedExtractor{}, newAnalyzer())
	router := newTestRouter(svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, multipartRequest(t, filePart{name: "a.pdf", contentType: extract.MimePDF, data: []byte("hello pdf")}))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	env := decodeEnvelope(t, resp)
	if env.Message.Text != "Created" {
		t.Fatalf("message = %q", env.Message.Text)
	}
	var data DocumentResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.FileInfo.ID == "" || data.FileInfo.FileName != "a.pdf" || data.FileInfo.Size != 9 {
		t.Fatalf("unexpected file_info %+v", data.FileInfo)
	}
	if data.FileInfo.LocalPath == nil || data.FileInfo.S3Key != nil {
		t.Fatalf("expected local path only, got %+v", data.FileInfo)
	}
	if data.Metadata.ExtractedText == nil || *data.Metadata.ExtractedText != "hello pdf" {
		t.Fatalf("unexpected metadata %+v", data.Metadata)
	}
	if data.Analysis != nil {
		t.Fatalf("upload should not analyze")
	}
}

func TestUploadInfersTypeFromExtension(t *testing.T) {
	svc, _ := newTestService(newMemStore(), &scriptedExtractor{}, newAnalyzer())
	router := newTestRouter(svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, multipartRequest(t, filePart{name: "notes.docx", contentType: "application/octet-stream", data: []byte("docx")}))

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var data DocumentResponse
	if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.FileInfo.MimeType != extract.MimeDOCX {
		t.Fatalf("mime_type = %q", data.FileInfo.MimeType)
	}
}

func TestUploadValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		part     filePart
		wantText string
	}{
		{"video", filePart{name: "clip.mp4", contentType: "video/mp4", data: []byte("x")}, MsgUnsupportedType},
		{"too large", filePart{name: "big.pdf", contentType: extract.MimePDF, data: bytes.Repeat([]byte("a"), MaxUploadBytes+10)}, MsgTooLarge},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			svc, repo := newTestService(store, &scriptedExtractor{}, newAnalyzer())
			router := newTestRouter(svc)

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, multipartRequest(t, tt.part))

			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.Code)
			}
			if env := decodeEnvelope(t, resp); env.Message.Text != tt.wantText {
				t.Fatalf("message = %q, want %q", env.Message.Text, tt.wantText)
			}
			if store.saveCount() != 0 {
				t.Fatalf("expected no storage write")
			}
			if docs, _ := repo.List(context.Background(), 0, 0); len(docs) != 0 {
				t.Fatalf("expected no records")
			}
		})
	}
}

func TestUploadRequiresFile(t *testing.T) {
	svc, _ := newTestService(newMemStore(), &scriptedExtractor{}, newAnalyzer())
	router := newTestRouter(svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, multipartRequest(t))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	if env := decodeEnvelope(t, resp); env.Message.Text != "file field is required" {
		t.Fatalf("message = %q", env.Message.Text)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents/upload", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multipart, got %d", resp.Code)
	}
}

func TestUploadPartialSuccess(t *testing.T) {
	ext := &scriptedExtractor{err: apperr.Extraction("test", errors.New("broken"))}
	svc, repo := newTestService(newMemStore(), ext, newAnalyzer())
	router := newTestRouter(svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, multipartRequest(t, filePart{name: "a.pdf", contentType: extract.MimePDF, data: []byte("x")}))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if env.Message.Text != "File uploaded but text extraction failed" {
		t.Fatalf("message = %q", env.Message.Text)
	}
	var data struct {
		Error    string           `json:"error"`
		Document DocumentResponse `json:"document"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Error == "" || data.Document.FileInfo.ID == "" {
		t.Fatalf("expected error detail and document identity, got %+v", data)
	}
	if _, err := repo.GetByID(context.Background(), data.Document.FileInfo.ID); err != nil {
		t.Fatalf("record should exist: %v", err)
	}
}

func TestUploadMultipleFiles(t *testing.T) {
	tests := []struct {
		name       string
		parts      []filePart
		wantStatus int
		wantItems  []int
	}{
		{
			name: "all created",
			parts: []filePart{
				{name: "a.pdf", contentType: extract.MimePDF, data: []byte("one")},
				{name: "b.docx", data: []byte("two")},
			},
			wantStatus: http.StatusCreated,
			wantItems:  []int{http.StatusCreated, http.StatusCreated},
		},
		{
			name: "one rejected",
			parts: []filePart{
				{name: "a.pdf", contentType: extract.MimePDF, data: []byte("one")},
				{name: "clip.mp4", contentType: "video/mp4", data: []byte("two")},
			},
			wantStatus: http.StatusMultiStatus,
			wantItems:  []int{http.StatusCreated, http.StatusBadRequest},
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(newMemStore(), &scriptedExtractor{}, newAnalyzer())
			router := newTestRouter(svc)

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, multipartRequest(t, tt.parts...))
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.Code, resp.Body.String())
			}
			var items []envelope
			if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &items); err != nil {
				t.Fatalf("decode items: %v", err)
			}
			if len(items) != len(tt.wantItems) {
				t.Fatalf("expected %d items, got %d", len(tt.wantItems), len(items))
			}
			for i, want := range tt.wantItems {
				if items[i].StatusCode != want {
					t.Fatalf("item %d status = %d, want %d", i, items[i].StatusCode, want)
				}
			}
		})
	}
}

func TestGetDocumentFillsGaps(t *testing.T) {
	store := newMemStore()
	an := newAnalyzer()
	svc, repo := newTestService(store, &scriptedExtractor{texts: []string{"filled"}}, an)
	router := newTestRouter(svc)

	ref, _ := store.Save(context.Background(), "a.pdf", bytes.NewReader([]byte("raw")))
	if err := repo.Create(context.Background(), Document{ID: "doc-1", FileName: "a.pdf", MimeType: extract.MimePDF, Ref: ref}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	env := decodeEnvelope(t, resp)
	if env.Message.Text != "Retrieval Successful" {
		t.Fatalf("message = %q", env.Message.Text)
	}
	var data DocumentResponse
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if data.Metadata.ExtractedText == nil || *data.Metadata.ExtractedText != "filled" {
		t.Fatalf("unexpected metadata %+v", data.Metadata)
	}
	if data.Analysis == nil || data.Analysis.MimeType != extract.MimePDF || data.Analysis.DocumentType != "report" {
		t.Fatalf("unexpected analysis %+v", data.Analysis)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	svc, _ := newTestService(newMemStore(), &scriptedExtractor{}, newAnalyzer())
	router := newTestRouter(svc)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
	if env := decodeEnvelope(t, resp); env.Message.Text != MsgNotFound {
		t.Fatalf("message = %q", env.Message.Text)
	}
}

func TestAnalyzeEndpointStatuses(t *testing.T) {
	tests := []struct {
		name       string
		doc        *Document
		anErr      error
		wantStatus int
		wantText   string
	}{
		{"analysis complete", &Document{ID: "doc-1", ExtractedText: ptr("text")}, nil, http.StatusOK, "Analysis complete"},
		{"not found", nil, nil, http.StatusNotFound, MsgNotFound},
		{"no source", &Document{ID: "doc-1"}, nil, http.StatusConflict, MsgNoSource},
		{"extraction failed", &Document{ID: "doc-1", Ref: objectRef("gone")}, nil, http.StatusInternalServerError, "Failed to extract document text"},
		{"llm failed", &Document{ID: "doc-1", ExtractedText: ptr("text")}, apperr.Analysis("test", errors.New("bad")), http.StatusBadGateway, "analysis failed"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			an := newAnalyzer()
			an.err = tt.anErr
			svc, repo := newTestService(newMemStore(), &scriptedExtractor{}, an)
			if tt.doc != nil {
				if err := repo.Create(context.Background(), *tt.doc); err != nil {
					t.Fatalf("Create: %v", err)
				}
			}
			router := newTestRouter(svc)

			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/analyze", nil))
			if resp.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, resp.Code, resp.Body.String())
			}
			if env := decodeEnvelope(t, resp); env.Message.Text != tt.wantText {
				t.Fatalf("message = %q, want %q", env.Message.Text, tt.wantText)
			}
		})
	}
}

func TestListDocumentsPagination(t *testing.T) {
	svc, repo := newTestService(newMemStore(), &scriptedExtractor{}, newAnalyzer())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"d1", "d2", "d3"} {
		at := base.Add(time.Duration(i) * time.Hour)
		if err := repo.Create(context.Background(), Document{ID: id, CreatedAt: at, UpdatedAt: at}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	router := newTestRouter(svc)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"d3", "d2", "d1"}},
		{"?page=1&per_page=2", []string{"d3", "d2"}},
		{"?page=2&per_page=2", []string{"d1"}},
		{"?page=3&per_page=2", []string{}},
		{"?per_page=abc", []string{"d3", "d2", "d1"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.query, func(t *testing.T) {
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/documents"+tt.query, nil))
			if resp.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", resp.Code)
			}
			var data []DocumentResponse
			if err := json.Unmarshal(decodeEnvelope(t, resp).Data, &data); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(data) != len(tt.want) {
				t.Fatalf("got %d docs, want %d", len(data), len(tt.want))
			}
			for i, id := range tt.want {
				if data[i].FileInfo.ID != id {
					t.Fatalf("doc %d = %s, want %s", i, data[i].FileInfo.ID, id)
				}
			}
		})
	}
}

// unavailableRepo fails every call the way PGRepo does when Postgres refuses
// connections.
type unavailableRepo struct{}

func (unavailableRepo) Create(ctx context.Context, doc Document) error {
	return translate("test.create", syscall.ECONNREFUSED)
}

func (unavailableRepo) GetByID(ctx context.Context, id string) (Document, error) {
	return Document{}, translate("test.get", syscall.ECONNREFUSED)
}

func (unavailableRepo) List(ctx context.Context, limit, offset int) ([]Document, error) {
	return nil, translate("test.list", syscall.ECONNREFUSED)
}

func (unavailableRepo) UpdateExtractedText(ctx context.Context, id, text string, at time.Time) error {
	return translate("test.update_text", syscall.ECONNREFUSED)
}

func (unavailableRepo) UpdateAnalysis(ctx context.Context, id string, result analysis.Result, at time.Time) error {
	return translate("test.update_analysis", syscall.ECONNREFUSED)
}

func objectRef(path string) object.Ref {
	return object.Ref{Kind: object.KindLocal, Path: path}
}

func TestDatabaseUnavailableMapsTo503(t *testing.T) {
	svc, _ := newTestService(newMemStore(), &scriptedExtractor{}, newAnalyzer())
	svc.Repo = unavailableRepo{}
	router := newTestRouter(svc)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/documents/doc-1", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/documents/doc-1/analyze", nil),
		multipartRequest(t, filePart{name: "a.pdf", contentType: extract.MimePDF, data: []byte("x")}),
	} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: expected 503, got %d", req.Method, req.URL.Path, resp.Code)
		}
		if env := decodeEnvelope(t, resp); env.Message.Text != MsgDBUnavailable {
			t.Fatalf("message = %q", env.Message.Text)
		}
	}
}
