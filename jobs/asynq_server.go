package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	jobmetrics "github.com/meridian-interiors/meridian-quotes/internal/jobs"
	"github.com/meridian-interiors/meridian-quotes/report"
)

// PDFStore records where a rendered agreement ended up.
type PDFStore interface {
	SetPDFPath(ctx context.Context, agreementID int64, path string) error
}

// Worker wraps the Asynq server and optional scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	logger    *slog.Logger

	renderer  *report.Renderer
	store     PDFStore
	outputDir string
	metrics   *jobmetrics.Metrics
}

// TaskHandler allows injecting custom Asynq handlers during worker setup.
type TaskHandler struct {
	Type    string
	Handler asynq.HandlerFunc
}

// CronRegistration wires a cron expression to a prepared task.
type CronRegistration struct {
	Spec    string
	Task    *asynq.Task
	Options []asynq.Option
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Logger    *slog.Logger
	Renderer  *report.Renderer
	Store     PDFStore
	OutputDir string
	Metrics   *jobmetrics.Metrics
	Handlers  []TaskHandler
	Cron      []CronRegistration
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})
	w := &Worker{
		server:    srv,
		mux:       asynq.NewServeMux(),
		logger:    cfg.Logger,
		renderer:  cfg.Renderer,
		store:     cfg.Store,
		outputDir: cfg.OutputDir,
		metrics:   cfg.Metrics,
	}
	w.mux.HandleFunc(TaskTypeAgreementRender, w.handleAgreementRender)
	for _, h := range cfg.Handlers {
		if h.Type == "" || h.Handler == nil {
			continue
		}
		w.mux.HandleFunc(h.Type, h.Handler)
	}

	if len(cfg.Cron) > 0 {
		w.scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		for _, entry := range cfg.Cron {
			if entry.Spec == "" || entry.Task == nil {
				continue
			}
			if _, err := w.scheduler.Register(entry.Spec, entry.Task, entry.Options...); err != nil {
				return nil, err
			}
		}
	}
	return w, nil
}

// handleAgreementRender renders the agreement PDF, writes it to the output
// directory, and records the path on the agreement row.
func (w *Worker) handleAgreementRender(ctx context.Context, t *asynq.Task) error {
	var payload AgreementRenderPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if w.renderer == nil || w.store == nil {
		return errors.New("jobs: agreement renderer not configured")
	}
	tracker := w.metrics.Track(TaskTypeAgreementRender)
	return tracker.End(w.renderAgreement(ctx, payload))
}

func (w *Worker) renderAgreement(ctx context.Context, payload AgreementRenderPayload) error {

	pdf, err := w.renderer.AgreementPDF(ctx, payload.AgreementID)
	if err != nil {
		return fmt.Errorf("render agreement %d: %w", payload.AgreementID, err)
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("agreement-%d.pdf", payload.AgreementID))
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return err
	}
	if err := w.store.SetPDFPath(ctx, payload.AgreementID, path); err != nil {
		return err
	}

	w.logger.Info("agreement pdf rendered",
		slog.Int64("agreementId", payload.AgreementID),
		slog.String("path", path),
	)
	return nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// DispatchAgreementRender enqueues a render task for the agreement. The
// approval service calls this right after the agreement row is created.
func (c *Client) DispatchAgreementRender(ctx context.Context, agreementID int64) error {
	task, err := NewAgreementRenderTask(AgreementRenderPayload{AgreementID: agreementID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}

// Handler exposes HTTP endpoints for job observability.
type Handler struct {
	inspector *asynq.Inspector
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for jobs endpoints.
func NewHandler(inspector *asynq.Inspector, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, logger: logger}
}

// MountRoutes attaches job routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/health", h.health)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queue":"default","pending":0}`))
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs health", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	pending := 0
	queueName := QueueDefault
	if info != nil {
		pending = int(info.Pending)
		queueName = info.Queue
	}
	_, _ = w.Write([]byte(`{"queue":"` + queueName + `","pending":` + strconv.Itoa(pending) + `}`))
}
