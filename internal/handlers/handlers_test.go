package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/skinscan/internal/analysis"
	"github.com/example/skinscan/internal/repository"
	"github.com/example/skinscan/internal/usecase"
)

type memCache struct {
	values map[string]string
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.values[key] = value.(string)
	return nil
}

func (m *memCache) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

type memAnalysisRepository struct {
	logs map[string]*repository.AnalysisLog
}

func (m *memAnalysisRepository) SaveLog(ctx context.Context, log *repository.AnalysisLog) error {
	m.logs[log.AnalysisID] = log
	return nil
}

func (m *memAnalysisRepository) FindByAnalysisID(ctx context.Context, analysisID string) (*repository.AnalysisLog, error) {
	log, ok := m.logs[analysisID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return log, nil
}

func (m *memAnalysisRepository) FindDuplicatesByHash(ctx context.Context, hash, excludeAnalysisID string) ([]*repository.AnalysisLog, error) {
	var out []*repository.AnalysisLog
	for _, log := range m.logs {
		if log.SHA1Hash == hash && log.AnalysisID != excludeAnalysisID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (m *memAnalysisRepository) AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error) {
	agg := &repository.MetricsAggregation{SkinTypeCounts: map[string]int64{}}
	for _, log := range m.logs {
		agg.TotalCount++
		if log.Source == string(analysis.SourceFallback) {
			agg.FallbackCount++
		}
		agg.SkinTypeCounts[log.SkinType]++
	}
	return agg, nil
}

type memJournalRepository struct {
	entries map[uint]repository.JournalEntry
	nextID  uint
}

func (m *memJournalRepository) Create(ctx context.Context, entry *repository.JournalEntry) error {
	m.nextID++
	entry.ID = m.nextID
	entry.CreatedAt = time.Now().UTC()
	entry.UpdatedAt = entry.CreatedAt
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memJournalRepository) Find(ctx context.Context, id uint) (*repository.JournalEntry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &entry, nil
}

func (m *memJournalRepository) List(ctx context.Context) ([]repository.JournalEntry, error) {
	out := make([]repository.JournalEntry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	return out, nil
}

func (m *memJournalRepository) Update(ctx context.Context, entry *repository.JournalEntry) error {
	current, ok := m.entries[entry.ID]
	if !ok {
		return repository.ErrNotFound
	}
	current.ProductName = entry.ProductName
	current.Duration = entry.Duration
	current.Helpful = entry.Helpful
	current.UpdatedAt = time.Now().UTC()
	m.entries[entry.ID] = current
	return nil
}

func (m *memJournalRepository) Delete(ctx context.Context, id uint) error {
	if _, ok := m.entries[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

type testServer struct {
	router *gin.Engine
	cache  *memCache
	logs   *memAnalysisRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cache := &memCache{values: map[string]string{}}
	logs := &memAnalysisRepository{logs: map[string]*repository.AnalysisLog{}}
	pool := usecase.NewSessionPool(analysis.NewSession(nil))
	analyses := usecase.NewAnalysisUseCase(logs, cache, pool, zap.NewNop())
	journal := usecase.NewJournalUseCase(&memJournalRepository{entries: map[uint]repository.JournalEntry{}}, zap.NewNop())

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	RegisterRoutes(router, analyses, journal)

	return &testServer{router: router, cache: cache, logs: logs}
}

func (s *testServer) do(method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp := httptest.NewRecorder()
	s.router.ServeHTTP(resp, req)
	return resp
}

func TestAnalyzeRejectsLargeUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize

	uc := &usecase.AnalysisUseCase{}
	RegisterRoutes(router, uc, &usecase.JournalUseCase{})

	body, contentType := buildMultipartBody(t, "image/png", bytes.Repeat([]byte("a"), MaxUploadSize+1))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status %d, got %d", http.StatusRequestEntityTooLarge, resp.Code)
	}
}

func TestAnalyzeRejectsUnsupportedContentType(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize

	uc := &usecase.AnalysisUseCase{}
	RegisterRoutes(router, uc, &usecase.JournalUseCase{})

	body, contentType := buildMultipartBody(t, "text/plain", []byte("hello"))

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d, got %d", http.StatusUnsupportedMediaType, resp.Code)
	}
}

func TestAnalyzeWithoutImageReturnsFallbackResult(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(http.MethodPost, "/analyze", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}

	var report usecase.AnalysisReport
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if report.Source != analysis.SourceFallback {
		t.Fatalf("expected fallback source, got %s", report.Source)
	}
	if len(report.Progress) != 9 || report.Progress[8].Percent != 100 {
		t.Fatalf("unexpected progress %+v", report.Progress)
	}
	if _, ok := analysis.ParseSkinType(string(report.Result.SkinType)); !ok {
		t.Fatalf("unexpected skin type %q", report.Result.SkinType)
	}
}

func TestAnalyzeThenFetchResult(t *testing.T) {
	srv := newTestServer(t)

	var photo bytes.Buffer
	if err := png.Encode(&photo, image.NewRGBA(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	body, contentType := buildMultipartBody(t, "image/png", photo.Bytes())

	resp := srv.do(http.MethodPost, "/analyze", body, contentType)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, resp.Code, resp.Body.String())
	}
	var created usecase.AnalysisReport
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}

	resp = srv.do(http.MethodGet, "/result/"+created.AnalysisID, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	var fetched usecase.AnalysisReport
	if err := json.Unmarshal(resp.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if fetched.Result.SkinType != created.Result.SkinType || fetched.Result.Confidence != created.Result.Confidence {
		t.Fatalf("fetched %+v, created %+v", fetched.Result, created.Result)
	}

	resp = srv.do(http.MethodGet, "/result/"+created.AnalysisID+"/transport", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if got := analysis.Unmarshal(resp.Body.String()); got.SkinType != created.Result.SkinType {
		t.Fatalf("transport skin type %s, want %s", got.SkinType, created.Result.SkinType)
	}

	resp = srv.do(http.MethodGet, "/result/"+created.AnalysisID+"/duplicates", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
}

func TestGetResultStatuses(t *testing.T) {
	srv := newTestServer(t)
	srv.cache.values["analysis:pending"] = "processing"

	if resp := srv.do(http.MethodGet, "/result/pending", nil, ""); resp.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, resp.Code)
	}
	if resp := srv.do(http.MethodGet, "/result/missing", nil, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestHealthReportsModelSource(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(http.MethodGet, "/health", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"model_source":"fallback"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestProducts(t *testing.T) {
	srv := newTestServer(t)

	if resp := srv.do(http.MethodGet, "/products?skinType=Scaly", nil, ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}

	resp := srv.do(http.MethodGet, "/products?skinType=oily&limit=2", nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	var body struct {
		SkinType string   `json:"skin_type"`
		Products []string `json:"products"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if body.SkinType != "Oily" || len(body.Products) != 2 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestDermatologists(t *testing.T) {
	srv := newTestServer(t)

	if resp := srv.do(http.MethodGet, "/dermatologists", nil, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if resp := srv.do(http.MethodGet, "/dermatologists/3", nil, ""); resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	if resp := srv.do(http.MethodGet, "/dermatologists/99", nil, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
}

func TestJournalLifecycle(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(http.MethodPost, "/journal", bytes.NewBufferString(`{"product_name":"  "}`), "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}

	resp = srv.do(http.MethodPost, "/journal", bytes.NewBufferString(`{"product_name":"Niacinamide Serum","duration":"3 weeks","helpful":true}`), "application/json")
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, resp.Code)
	}
	var entry repository.JournalEntry
	if err := json.Unmarshal(resp.Body.Bytes(), &entry); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if entry.ID == 0 || entry.ProductName != "Niacinamide Serum" {
		t.Fatalf("unexpected entry %+v", entry)
	}

	resp = srv.do(http.MethodPut, "/journal/1", bytes.NewBufferString(`{"product_name":"Niacinamide Serum","duration":"6 weeks"}`), "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, resp.Code)
	}
	var updated repository.JournalEntry
	if err := json.Unmarshal(resp.Body.Bytes(), &updated); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if updated.Duration != "6 weeks" || updated.CreatedAt.IsZero() || !updated.CreatedAt.Equal(entry.CreatedAt) {
		t.Fatalf("unexpected updated entry %+v", updated)
	}
	if resp := srv.do(http.MethodPut, "/journal/42", bytes.NewBufferString(`{"product_name":"Toner"}`), "application/json"); resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}

	if resp := srv.do(http.MethodDelete, "/journal/1", nil, ""); resp.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, resp.Code)
	}
	if resp := srv.do(http.MethodDelete, "/journal/1", nil, ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, resp.Code)
	}
	if resp := srv.do(http.MethodDelete, "/journal/abc", nil, ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, resp.Code)
	}
}

func buildMultipartBody(t *testing.T, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="image"; filename="upload"`)
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	return body, writer.FormDataContentType()
}
