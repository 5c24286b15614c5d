// Package export uploads conversation transcripts to object storage from a
// bounded worker pool.
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/palchat/backend/internal/models"
)

// AssetStorage persists rendered transcripts and returns their location.
type AssetStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// HistoryReader loads the conversation between two users.
type HistoryReader interface {
	ListBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
}

// StatusStore records export progress.
type StatusStore interface {
	Create(ctx context.Context, export models.Export) error
	MarkReady(ctx context.Context, id, location string, size int64) error
	MarkFailed(ctx context.Context, id string) error
}

// Config controls the concurrency characteristics of the exporter.
type Config struct {
	QueueSize  int
	Workers    int
	JobTimeout time.Duration
}

// Exporter renders and uploads transcripts in the background.
type Exporter struct {
	history HistoryReader
	storage AssetStorage
	status  StatusStore
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	mu     sync.RWMutex
	closed bool
	jobs   chan models.Export
	wg     sync.WaitGroup
	once   sync.Once
}

// NewExporter starts cfg.Workers workers.
func NewExporter(history HistoryReader, storage AssetStorage, status StatusStore, cfg Config, logger *slog.Logger) *Exporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Exporter{
		history: history,
		storage: storage,
		status:  status,
		logger:  logger,
		timeout: cfg.JobTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		jobs:    make(chan models.Export, cfg.QueueSize),
	}

	e.wg.Add(cfg.Workers)
	for range cfg.Workers {
		go e.worker()
	}

	return e
}

// Enqueue records a pending export of the owner's conversation with peer and
// schedules it. It blocks while the queue is full until ctx is done.
func (e *Exporter) Enqueue(ctx context.Context, owner, peer string) (models.Export, error) {
	if e.storage == nil {
		return models.Export{}, ErrStorageUnavailable
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return models.Export{}, ErrExporterClosed
	}

	job := models.Export{
		ID:        uuid.NewString(),
		Owner:     owner,
		Peer:      peer,
		Status:    models.ExportStatusPending,
		CreatedAt: e.now(),
	}
	if err := e.status.Create(ctx, job); err != nil {
		return models.Export{}, fmt.Errorf("create export: %w", err)
	}

	select {
	case e.jobs <- job:
		return job, nil
	case <-ctx.Done():
		e.recordFailure(job.ID)
		return models.Export{}, ctx.Err()
	}
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.jobs)
		e.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (e *Exporter) worker() {
	defer e.wg.Done()

	for job := range e.jobs {
		e.handleJob(job)
	}
}

func (e *Exporter) handleJob(job models.Export) {
	logger := e.logger.With(slog.String("exportId", job.ID), slog.String("owner", job.Owner), slog.String("peer", job.Peer))

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	messages, err := e.history.ListBetween(ctx, job.Owner, job.Peer)
	if err != nil {
		logger.Error("load conversation history", "error", err)
		e.recordFailure(job.ID)
		return
	}

	body := renderTranscript(job.Owner, job.Peer, e.now(), messages)
	key := path.Join("exports", job.Owner, job.ID+".txt")

	location, err := e.storage.Save(ctx, key, bytes.NewReader(body))
	if err != nil {
		logger.Error("upload transcript", "key", key, "error", err)
		e.recordFailure(job.ID)
		return
	}

	if err := e.status.MarkReady(ctx, job.ID, location, int64(len(body))); err != nil {
		logger.Error("mark export ready", "error", err)
		e.recordFailure(job.ID)
		return
	}

	logger.Info("transcript exported", "location", location, "messages", len(messages))
}

func (e *Exporter) recordFailure(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.status.MarkFailed(ctx, id); err != nil {
		e.logger.Error("record export failure", "exportId", id, "error", err)
	}
}
