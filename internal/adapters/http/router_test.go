package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medinsight/report-analyzer/internal/config"
	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/observability/metrics"
)

type analyzerFake struct {
	result *domain.PipelineResult
	err    error
	calls  int
	last   domain.Document
}

func (f *analyzerFake) Analyze(_ context.Context, doc domain.Document) (*domain.PipelineResult, error) {
	f.calls++
	f.last = doc
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &domain.PipelineResult{
		Status:      domain.PipelineSuccess,
		ReportID:    "report-1",
		Text:        string(doc.Content),
		Pages:       []domain.Page{{PageNumber: 1, Content: string(doc.Content)}},
		PageCount:   1,
		Predictions: []domain.DiseasePrediction{},
	}, nil
}

type submitterFake struct {
	job *domain.AnalysisJob
	err error
}

func (f submitterFake) Submit(_ context.Context, filename string, body io.Reader) (*domain.AnalysisJob, error) {
	if f.err != nil {
		return nil, f.err
	}
	if _, err := io.ReadAll(body); err != nil {
		return nil, err
	}
	job := *f.job
	job.Filename = filename
	return &job, nil
}

type jobsFake struct {
	jobs map[string]*domain.AnalysisJob
}

func (f jobsFake) GetByID(_ context.Context, id string) (*domain.AnalysisJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrJobNotFound, "get job", errors.New("id="+id))
	}
	return job, nil
}

type exporterFake struct{}

func (exporterFake) Export(result *domain.PipelineResult) ([]byte, error) {
	return []byte("xlsx:" + result.ReportID), nil
}

func (exporterFake) ContentType() string {
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func newTestHandler(cfg config.Config, services Services) http.Handler {
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = 1024 * 1024
	}
	if len(cfg.SupportedFormats) == 0 {
		cfg.SupportedFormats = []string{".pdf", ".png", ".txt"}
	}
	if services.Analyzer == nil {
		services.Analyzer = &analyzerFake{}
	}
	return NewRouter(cfg, services).Handler()
}

func multipartRequest(t *testing.T, path, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeEnvelope(t *testing.T, res *httptest.ResponseRecorder) domain.ErrorEnvelope {
	t.Helper()
	var envelope domain.ErrorEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	return envelope
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"healthy"`) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestSupportedFormats(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/supported-formats", nil))

	var body struct {
		Formats     []string `json:"formats"`
		MaxFileSize int64    `json:"max_file_size"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Formats) != 3 || body.MaxFileSize != 1024*1024 {
		t.Fatalf("unexpected formats response: %+v", body)
	}
}

func TestAnalyzeReportReturnsPipelineResult(t *testing.T) {
	analyzer := &analyzerFake{}
	handler := newTestHandler(config.Config{}, Services{Analyzer: analyzer})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/reports/analyze", "labs.txt", []byte("Glucose 180 mg/dL")))

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if analyzer.calls != 1 {
		t.Fatalf("expected one pipeline call, got %d", analyzer.calls)
	}
	if analyzer.last.Format != domain.FormatPlainText || analyzer.last.Filename != "labs.txt" {
		t.Fatalf("unexpected document: %+v", analyzer.last)
	}

	var result domain.PipelineResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.Status != domain.PipelineSuccess || result.ReportID != "report-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestAnalyzeReportRejectsUnsupportedFormatBeforePipeline(t *testing.T) {
	analyzer := &analyzerFake{}
	handler := newTestHandler(config.Config{}, Services{Analyzer: analyzer})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/reports/analyze", "report.docx", []byte("x")))

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	envelope := decodeEnvelope(t, res)
	if envelope.Status != domain.PipelineError || envelope.Code != http.StatusBadRequest {
		t.Fatalf("unexpected envelope: %+v", envelope)
	}
	if !strings.Contains(envelope.Error, "Unsupported file format") {
		t.Fatalf("unexpected error message: %q", envelope.Error)
	}
	if analyzer.calls != 0 {
		t.Fatalf("pipeline must not run, got %d calls", analyzer.calls)
	}
}

func TestAnalyzeReportRejectsMissingFile(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})

	req := httptest.NewRequest(http.MethodPost, "/v1/reports/analyze", strings.NewReader(""))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestAnalyzeReportRejectsOversizedUpload(t *testing.T) {
	analyzer := &analyzerFake{}
	handler := newTestHandler(config.Config{MaxFileSize: 16}, Services{Analyzer: analyzer})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/reports/analyze", "big.txt", bytes.Repeat([]byte("a"), 64)))

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
	if analyzer.calls != 0 {
		t.Fatalf("pipeline must not run, got %d calls", analyzer.calls)
	}
}

func TestAnalyzeErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		want    int
		message string
	}{
		{
			name:    "extraction failure",
			err:     domain.NewUserError(domain.ErrExtractionFailed, "No text could be extracted from the document"),
			want:    http.StatusUnprocessableEntity,
			message: "No text could be extracted from the document",
		},
		{
			name:    "unexpected",
			err:     domain.WrapError(domain.ErrUnexpected, "analyze report", errors.New("nil map write")),
			want:    http.StatusInternalServerError,
			message: "internal server error",
		},
		{
			name:    "temporary",
			err:     domain.WrapError(domain.ErrTemporary, "ollama generate", errors.New("connection refused")),
			want:    http.StatusServiceUnavailable,
			message: "service temporarily unavailable",
		},
		{
			name:    "deadline",
			err:     context.DeadlineExceeded,
			want:    http.StatusGatewayTimeout,
			message: "analysis timed out",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := newTestHandler(config.Config{}, Services{Analyzer: &analyzerFake{err: tc.err}})

			res := httptest.NewRecorder()
			handler.ServeHTTP(res, multipartRequest(t, "/v1/reports/analyze", "labs.txt", []byte("text")))
			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			envelope := decodeEnvelope(t, res)
			if envelope.Error != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, envelope.Error)
			}
		})
	}
}

func TestAnalyzeReportText(t *testing.T) {
	analyzer := &analyzerFake{}
	handler := newTestHandler(config.Config{}, Services{Analyzer: analyzer})

	payload, _ := json.Marshal(map[string]string{"text": "Patient has hypertension"})
	req := httptest.NewRequest(http.MethodPost, "/v1/reports/analyze-text", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if analyzer.last.Format != domain.FormatPlainText || string(analyzer.last.Content) != "Patient has hypertension" {
		t.Fatalf("unexpected document: %+v", analyzer.last)
	}
}

func TestAnalyzeReportTextRequiresText(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})

	for _, body := range []string{`{"text":"   "}`, `not json`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/reports/analyze-text", strings.NewReader(body))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, res.Code)
		}
	}
}

func TestSubmitReportReturns202(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{
		Submitter: submitterFake{job: &domain.AnalysisJob{ID: "job-1", Format: domain.FormatPlainText, Status: domain.JobQueued}},
		Jobs:      jobsFake{},
	})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, multipartRequest(t, "/v1/reports", "labs.txt", []byte("text")))

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	var job domain.AnalysisJob
	if err := json.NewDecoder(res.Body).Decode(&job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != "job-1" || job.Status != domain.JobQueued || job.Filename != "labs.txt" {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestAsyncRoutesAbsentWithoutServices(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/job-1", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetReportReturns404ForUnknownJob(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Jobs: jobsFake{}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/missing", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestExportReport(t *testing.T) {
	jobs := jobsFake{jobs: map[string]*domain.AnalysisJob{
		"done": {
			ID:     "done",
			Status: domain.JobCompleted,
			Result: &domain.PipelineResult{ReportID: "r-1"},
		},
		"queued": {ID: "queued", Status: domain.JobQueued},
	}}
	handler := newTestHandler(config.Config{}, Services{Jobs: jobs, Exporter: exporterFake{}})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/done/export.xlsx", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Body.String() != "xlsx:r-1" {
		t.Fatalf("unexpected payload: %q", res.Body.String())
	}
	if !strings.Contains(res.Header().Get("Content-Disposition"), "report-done.xlsx") {
		t.Fatalf("unexpected content disposition: %q", res.Header().Get("Content-Disposition"))
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/reports/queued/export.xlsx", nil))
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409 for unfinished job, got %d", res.Code)
	}
}

func TestMetricsEndpointExposesRequests(t *testing.T) {
	handler := newTestHandler(config.Config{}, Services{Metrics: metrics.NewHTTPServerMetrics("api")})

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "mra_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
	if !strings.Contains(res.Body.String(), `route="GET /healthz"`) {
		t.Fatalf("expected requests labelled by route pattern")
	}
}

func TestOpenAPIDocumentLoadsAndIsServed(t *testing.T) {
	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		t.Fatalf("load openapi: %v", err)
	}
	handler := newTestHandler(config.Config{}, Services{OpenAPI: doc})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var parsed map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("openapi.json is not json: %v", err)
	}
	paths, _ := parsed["paths"].(map[string]any)
	if _, ok := paths["/v1/reports/analyze"]; !ok {
		t.Fatalf("expected analyze path in document")
	}
}
