package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/medinsight/report-analyzer/internal/config"
	"github.com/medinsight/report-analyzer/internal/core/domain"
	"github.com/medinsight/report-analyzer/internal/core/ports"
	"github.com/medinsight/report-analyzer/internal/core/usecase"
	"github.com/medinsight/report-analyzer/internal/observability/metrics"
)

const (
	multipartOverhead = 1 << 20
	maxTextBodyBytes  = 4 << 20
)

// Services are the inbound ports driven by the router. Submitter, Jobs and
// Exporter are optional; their routes are not registered when nil.
type Services struct {
	Analyzer  ports.ReportAnalyzer
	Submitter ports.JobSubmitter
	Jobs      ports.JobReader
	Exporter  ports.ResultExporter
	Metrics   *metrics.HTTPServerMetrics
	OpenAPI   []byte
}

type Router struct {
	cfg      config.Config
	policy   usecase.UploadPolicy
	services Services
}

func NewRouter(cfg config.Config, services Services) *Router {
	return &Router{
		cfg: cfg,
		policy: usecase.UploadPolicy{
			MaxFileSize:      cfg.MaxFileSize,
			SupportedFormats: cfg.SupportedFormats,
		},
		services: services,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/supported-formats", rt.supportedFormats)
	mux.HandleFunc("POST /v1/reports/analyze", rt.analyzeReport)
	mux.HandleFunc("POST /v1/reports/analyze-text", rt.analyzeReportText)
	if rt.services.Submitter != nil {
		mux.HandleFunc("POST /v1/reports", rt.submitReport)
	}
	if rt.services.Jobs != nil {
		mux.HandleFunc("GET /v1/reports/{id}", rt.getReport)
		if rt.services.Exporter != nil {
			mux.HandleFunc("GET /v1/reports/{id}/export.xlsx", rt.exportReport)
		}
	}
	if len(rt.services.OpenAPI) > 0 {
		mux.HandleFunc("GET /openapi.json", rt.openAPI)
	}

	var rejected rejectionRecorder
	if rt.services.Metrics != nil {
		mux.Handle("GET /metrics", rt.services.Metrics.Handler())
		rejected = rt.services.Metrics
	}

	var handler http.Handler = mux
	handler = apiKeyMiddleware(handler, rt.cfg.APIKey, rejected)
	handler = backpressureWithRecorder(
		handler,
		rt.cfg.APIBackpressureMaxInFlight,
		time.Duration(rt.cfg.APIBackpressureWaitTimeoutMS)*time.Millisecond,
		rejected,
	)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rejected)
	if rt.services.Metrics != nil {
		handler = rt.services.Metrics.Middleware(handler)
	}
	handler = recoverMiddleware(handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (rt *Router) supportedFormats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"formats":       rt.policy.SupportedFormats,
		"max_file_size": rt.policy.MaxFileSize,
	})
}

func (rt *Router) openAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.services.OpenAPI)
}

func (rt *Router) analyzeReport(w http.ResponseWriter, r *http.Request) {
	file, header, err := rt.formFile(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer file.Close()

	format, err := rt.policy.Validate(header.Filename, header.Size)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	content, err := rt.policy.ReadLimited(file)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	rt.recordUpload(format, len(content))

	rt.runAnalysis(w, r, domain.Document{
		Filename: header.Filename,
		Format:   format,
		Content:  content,
	})
}

func (rt *Router) analyzeReportText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTextBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	rt.recordUpload(domain.FormatPlainText, len(req.Text))

	rt.runAnalysis(w, r, domain.Document{
		Filename: "report.txt",
		Format:   domain.FormatPlainText,
		Content:  []byte(req.Text),
	})
}

func (rt *Router) runAnalysis(w http.ResponseWriter, r *http.Request, doc domain.Document) {
	ctx := r.Context()
	if timeout := rt.cfg.AnalyzeTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := rt.services.Analyzer.Analyze(ctx, doc)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) submitReport(w http.ResponseWriter, r *http.Request) {
	file, header, err := rt.formFile(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer file.Close()

	job, err := rt.services.Submitter.Submit(r.Context(), header.Filename, file)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	rt.recordUpload(job.Format, int(header.Size))
	writeJSON(w, http.StatusAccepted, job)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	job, err := rt.services.Jobs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (rt *Router) exportReport(w http.ResponseWriter, r *http.Request) {
	job, err := rt.services.Jobs.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if job.Status != domain.JobCompleted || job.Result == nil {
		writeError(w, http.StatusConflict, "analysis job is not completed")
		return
	}

	payload, err := rt.services.Exporter.Export(job.Result)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", rt.services.Exporter.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="report-`+job.ID+`.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (rt *Router) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if rt.policy.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.policy.MaxFileSize+multipartOverhead)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, nil, rt.policy.TooLarge()
		}
		return nil, nil, domain.NewUserError(domain.ErrInvalidInput, "No file provided")
	}
	return file, header, nil
}

func (rt *Router) recordUpload(format domain.Format, size int) {
	if rt.services.Metrics == nil {
		return
	}
	rt.services.Metrics.RecordUpload(string(format), size)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
