package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/truthgauge/internal/model"
	"github.com/ppiankov/truthgauge/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAnalyzer struct {
	got model.RawInput
	err error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, input model.RawInput) (*model.Analysis, error) {
	f.got = input
	if f.err != nil {
		return nil, f.err
	}
	return &model.Analysis{
		ID:        "abc",
		InputKind: input.Kind,
		Result:    model.AnalysisResult{IsLikelyTrue: true, Confidence: 0.7, Sources: []model.ResultSource{}},
	}, nil
}

type checkedAnalyzer struct {
	fakeAnalyzer
	modelUp bool
	checks  int
}

func (f *checkedAnalyzer) ModelAvailable(ctx context.Context) bool {
	f.checks++
	return f.modelUp
}

type fakeReader struct {
	items map[string]model.Analysis
	limit int
}

func (f *fakeReader) Get(ctx context.Context, id string) (*model.Analysis, error) {
	a, ok := f.items[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (f *fakeReader) List(ctx context.Context, limit int) ([]model.Analysis, error) {
	f.limit = limit
	out := []model.Analysis{}
	for _, a := range f.items {
		out = append(out, a)
	}
	return out, nil
}

func testServerConfig() model.ServerConfig {
	return model.ServerConfig{Address: ":0", MaxUploadBytes: 1 << 20}
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := NewServer(testServerConfig(), &fakeAnalyzer{}, nil)
	w := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "ok" || resp.Persistence {
		t.Errorf("unexpected health: %+v", resp)
	}
}

func TestHealth_ModelCheck(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		modelUp    bool
		wantCode   int
		wantStatus string
		wantModel  string
		wantChecks int
	}{
		{"no check requested", "/health", false, http.StatusOK, "ok", "", 0},
		{"model reachable", "/health?check=model", true, http.StatusOK, "ok", "available", 1},
		{"model unreachable", "/health?check=model", false, http.StatusServiceUnavailable, "degraded", "unavailable", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &checkedAnalyzer{modelUp: tt.modelUp}
			srv := NewServer(testServerConfig(), analyzer, nil)
			w := doJSON(t, srv.Handler(), http.MethodGet, tt.path, nil)

			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Status != tt.wantStatus || resp.Model != tt.wantModel {
				t.Errorf("unexpected health: %+v", resp)
			}
			if analyzer.checks != tt.wantChecks {
				t.Errorf("expected %d model checks, got %d", tt.wantChecks, analyzer.checks)
			}
		})
	}
}

func TestHealth_ModelCheckWithoutChecker(t *testing.T) {
	srv := NewServer(testServerConfig(), &fakeAnalyzer{}, nil)
	w := doJSON(t, srv.Handler(), http.MethodGet, "/health?check=model", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), `"model"`) {
		t.Errorf("unexpected model field: %s", w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := NewServer(testServerConfig(), &fakeAnalyzer{}, nil)
	w := doJSON(t, srv.Handler(), http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected Prometheus exposition output")
	}
}

func TestCreate_Text(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	srv := NewServer(testServerConfig(), analyzer, nil)

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/analyses", AnalyzeRequest{Content: "The sky is green."})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if analyzer.got.Kind != model.InputText || analyzer.got.Text != "The sky is green." {
		t.Errorf("unexpected input: %+v", analyzer.got)
	}

	var a model.Analysis
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.ID != "abc" || a.Result.Confidence != 0.7 {
		t.Errorf("unexpected analysis: %+v", a)
	}
}

func TestCreate_URL(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	srv := NewServer(testServerConfig(), analyzer, nil)

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/analyses", AnalyzeRequest{URL: " https://example.com/a "})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if analyzer.got.Kind != model.InputURL || analyzer.got.URL != "https://example.com/a" {
		t.Errorf("unexpected input: %+v", analyzer.got)
	}
}

func TestCreate_Multipart(t *testing.T) {
	analyzer := &fakeAnalyzer{}
	srv := NewServer(testServerConfig(), analyzer, nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="report.pdf"`)
	header.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("%PDF-1.4 body"))
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if analyzer.got.Kind != model.InputFile || analyzer.got.MediaType != "application/pdf" ||
		analyzer.got.Filename != "report.pdf" || string(analyzer.got.Bytes) != "%PDF-1.4 body" {
		t.Errorf("unexpected input: %+v", analyzer.got)
	}
}

func TestCreate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"empty", AnalyzeRequest{}},
		{"both", AnalyzeRequest{Content: "x", URL: "https://example.com"}},
		{"not an object", []int{1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{}
			srv := NewServer(testServerConfig(), analyzer, nil)
			w := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/analyses", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
			if analyzer.got.Kind != "" {
				t.Error("analyzer should not run")
			}
		})
	}
}

func TestCreate_BodyTooLarge(t *testing.T) {
	cfg := testServerConfig()
	cfg.MaxUploadBytes = 32
	srv := NewServer(cfg, &fakeAnalyzer{}, nil)

	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/analyses", AnalyzeRequest{Content: strings.Repeat("x", 200)})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
}

func TestCreate_ErrorKindsMapToStatus(t *testing.T) {
	tests := []struct {
		kind model.ErrorKind
		want int
	}{
		{model.KindUnsupportedFormat, http.StatusUnsupportedMediaType},
		{model.KindExtractionFailed, http.StatusUnprocessableEntity},
		{model.KindEvidenceServiceUnavailable, http.StatusServiceUnavailable},
		{model.KindMisconfigured, http.StatusInternalServerError},
		{model.KindModelUnavailable, http.StatusServiceUnavailable},
		{model.KindUnparsableModelOutput, http.StatusBadGateway},
		{model.KindInvalidConfidence, http.StatusBadGateway},
		{model.KindTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			analyzer := &fakeAnalyzer{err: model.NewError(tt.kind, "boom", nil)}
			srv := NewServer(testServerConfig(), analyzer, nil)

			w := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/analyses", AnalyzeRequest{Content: "x"})
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Kind != string(tt.kind) {
				t.Errorf("expected kind %s, got %s", tt.kind, resp.Kind)
			}
		})
	}
}

func TestCreate_UnclassifiedError(t *testing.T) {
	srv := NewServer(testServerConfig(), &fakeAnalyzer{err: errors.New("save analysis: disk full")}, nil)
	w := doJSON(t, srv.Handler(), http.MethodPost, "/api/v1/analyses", AnalyzeRequest{Content: "x"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestGetAndList(t *testing.T) {
	reader := &fakeReader{items: map[string]model.Analysis{
		"a1": {ID: "a1", InputKind: model.InputText},
	}}
	srv := NewServer(testServerConfig(), &fakeAnalyzer{}, reader)
	h := srv.Handler()

	w := doJSON(t, h, http.MethodGet, "/api/v1/analyses/a1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/analyses/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/analyses?limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list ListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if list.Count != 1 || reader.limit != 5 {
		t.Errorf("unexpected list: %+v (limit %d)", list, reader.limit)
	}

	w = doJSON(t, h, http.MethodGet, "/api/v1/analyses?limit=abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestReadEndpointsWithoutStore(t *testing.T) {
	srv := NewServer(testServerConfig(), &fakeAnalyzer{}, nil)
	for _, path := range []string{"/api/v1/analyses", "/api/v1/analyses/x"} {
		w := doJSON(t, srv.Handler(), http.MethodGet, path, nil)
		if w.Code != http.StatusNotImplemented {
			t.Errorf("%s: expected 501, got %d", path, w.Code)
		}
	}
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	cfg := testServerConfig()
	cfg.Address = "127.0.0.1:0"
	srv := NewServer(cfg, &fakeAnalyzer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}
