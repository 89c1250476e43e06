package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medinsight/report-analyzer/internal/config"
	"github.com/medinsight/report-analyzer/internal/core/ports"
	"github.com/medinsight/report-analyzer/internal/core/usecase"
	"github.com/medinsight/report-analyzer/internal/infrastructure/export/xlsx"
	"github.com/medinsight/report-analyzer/internal/infrastructure/inference/hfapi"
	"github.com/medinsight/report-analyzer/internal/infrastructure/inference/lexicon"
	"github.com/medinsight/report-analyzer/internal/infrastructure/llm/ollama"
	"github.com/medinsight/report-analyzer/internal/infrastructure/llm/openai"
	"github.com/medinsight/report-analyzer/internal/infrastructure/ocr"
	"github.com/medinsight/report-analyzer/internal/infrastructure/ocr/tesseract"
	"github.com/medinsight/report-analyzer/internal/infrastructure/paging/pdf"
	"github.com/medinsight/report-analyzer/internal/infrastructure/queue/nats"
	"github.com/medinsight/report-analyzer/internal/infrastructure/repository/postgres"
	"github.com/medinsight/report-analyzer/internal/infrastructure/resilience"
	"github.com/medinsight/report-analyzer/internal/infrastructure/storage/localfs"
)

const maxPDFPages = 200

type App struct {
	Config config.Config

	Analyzer *usecase.AnalyzeReportUseCase
	Exporter ports.ResultExporter

	// Set only when async processing is enabled.
	Queue     ports.MessageQueue
	Jobs      ports.JobRepository
	SubmitUC  ports.JobSubmitter
	ProcessUC ports.JobProcessor

	closeFn func()
}

// AsyncEnabled reports whether the job repository and queue were wired.
func (a *App) AsyncEnabled() bool {
	return a.Jobs != nil && a.Queue != nil
}

// New wires the pipeline. observer may be nil.
func New(ctx context.Context, cfg config.Config, observer ports.StageObserver) (*App, error) {
	executor := resilience.NewExecutor(resilienceConfig(cfg))

	analyzer := usecase.NewAnalyzeReportUseCase(
		newExtractor(cfg),
		newClassifier(cfg, executor),
		newClinicalAnalyzer(cfg, executor),
		newSynthesizer(cfg, executor),
		observer,
	)

	app := &App{
		Config:   cfg,
		Analyzer: analyzer,
		Exporter: xlsx.NewExporter(),
	}
	if !cfg.AsyncEnabled {
		return app, nil
	}

	if err := app.wireAsync(ctx, cfg, executor); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) wireAsync(ctx context.Context, cfg config.Config, executor *resilience.Executor) error {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	a.closeFn = func() { _ = db.Close() }

	repo := postgres.NewJobRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return fmt.Errorf("init message queue: %w", err)
	}
	a.closeFn = func() {
		queue.Close()
		_ = db.Close()
	}

	policy := usecase.UploadPolicy{
		MaxFileSize:      cfg.MaxFileSize,
		SupportedFormats: cfg.SupportedFormats,
	}
	a.Queue = queue
	a.Jobs = repo
	a.SubmitUC = usecase.NewSubmitAnalysisUseCase(policy, repo, storage, queue)
	a.ProcessUC = usecase.NewProcessJobUseCase(repo, storage, a.Analyzer)
	return nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func resilienceConfig(cfg config.Config) resilience.Config {
	rc := resilience.DefaultConfig()
	rc.Breaker.Enabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceRetryMaxAttempts > 0 {
		rc.Retry.Attempts = cfg.ResilienceRetryMaxAttempts
	}
	return rc
}

func newExtractor(cfg config.Config) *usecase.TextExtractor {
	images := tesseract.NewRecognizer(tesseract.Options{
		Languages: splitLanguages(cfg.TesseractLang),
	})
	return usecase.NewTextExtractor(
		pdf.NewSource(maxPDFPages, pdf.NewFitzRenderer(cfg.PDFRenderDPI)),
		ocr.NewLayeredRecognizer(images, ocr.Options{Preprocess: cfg.OCRPreprocess}),
		usecase.ExtractorOptions{
			OCRConcurrency:   cfg.OCRConcurrency,
			OCRTimeout:       cfg.OCRTimeout(),
			MinOCRConfidence: cfg.OCRMinConfidence,
		},
	)
}

func newInferenceClient(cfg config.Config, executor *resilience.Executor) *hfapi.Client {
	if strings.TrimSpace(cfg.InferenceURL) == "" {
		return nil
	}
	return hfapi.New(cfg.InferenceURL, hfapi.Models{
		Classifier: cfg.ClassifierModel,
		NER:        cfg.NERModel,
		QA:         cfg.QAModel,
		Summary:    cfg.SummaryModel,
	}, hfapi.Options{
		APIKey:   cfg.InferenceAPIKey,
		Executor: executor,
	})
}

func newClassifier(cfg config.Config, executor *resilience.Executor) *usecase.DiseaseClassifier {
	var scorer ports.LabelScorer = lexicon.New()
	if client := newInferenceClient(cfg, executor); client != nil {
		scorer = client
	} else {
		slog.Info("inference_backend_offline", "classifier", "lexicon")
	}
	return usecase.NewDiseaseClassifier(scorer, usecase.ClassifierOptions{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		MaxSequenceLength:   cfg.MaxSequenceLength,
		Timeout:             cfg.ClassifyTimeout(),
	})
}

func newClinicalAnalyzer(cfg config.Config, executor *resilience.Executor) *usecase.ClinicalAnalyzer {
	opts := usecase.AnalyzerOptions{
		NERTimeout:     cfg.NERTimeout(),
		QATimeout:      cfg.QATimeout(),
		SummaryTimeout: cfg.SummaryTimeout(),
	}
	client := newInferenceClient(cfg, executor)
	if client == nil {
		return usecase.NewClinicalAnalyzer(nil, nil, nil, opts)
	}
	return usecase.NewClinicalAnalyzer(client, client, client, opts)
}

func newSynthesizer(cfg config.Config, executor *resilience.Executor) *usecase.RecommendationSynthesizer {
	backends := make([]usecase.GenerationBackend, 0, 2)
	if cfg.RemoteGenerationEnabled() {
		backends = append(backends, usecase.GenerationBackend{
			Name: "openai",
			Generator: openai.NewGenerator(openai.Options{
				BaseURL:     cfg.OpenAIBaseURL,
				APIKey:      cfg.OpenAIAPIKey,
				Model:       cfg.OpenAIModel,
				MaxTokens:   cfg.LLMMaxTokens,
				Temperature: cfg.LLMTemperature,
				Timeout:     cfg.GenerationTimeout(),
				Executor:    executor,
			}),
		})
	}
	backends = append(backends, usecase.GenerationBackend{
		Name: "local",
		Generator: ollama.NewGenerator(cfg.OllamaURL, ollama.Options{
			Model:       cfg.OllamaGenModel,
			Temperature: cfg.LLMTemperature,
			MaxTokens:   cfg.LLMMaxTokens,
			Timeout:     cfg.GenerationTimeout(),
			Executor:    executor,
		}),
	})
	return usecase.NewRecommendationSynthesizer(backends, usecase.SynthesizerOptions{
		Timeout: cfg.GenerationTimeout(),
	})
}

func splitLanguages(value string) []string {
	var out []string
	for _, lang := range strings.FieldsFunc(value, func(r rune) bool { return r == '+' || r == ',' }) {
		if lang = strings.TrimSpace(lang); lang != "" {
			out = append(out, lang)
		}
	}
	return out
}
