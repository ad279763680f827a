// Package archive offloads aged-out timeline events to S3-compatible
// object storage and prunes them from the database.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/notifyhub/backend/internal/config"
	"github.com/notifyhub/backend/internal/events"
	"github.com/notifyhub/backend/internal/metrics"
)

// EventStore is the slice of the event repository the archiver needs.
type EventStore interface {
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]events.Event, error)
	DeleteByIDs(ctx context.Context, eventIDs []string) (int64, error)
}

// Worker periodically moves events past the retention window into object
// storage. Runs are best-effort; a failed run is retried on the next tick.
type Worker struct {
	client    *s3.Client
	bucket    string
	store     EventStore
	retention time.Duration
	interval  time.Duration
	batchSize int
	log       *slog.Logger
}

// NewWorker creates an archive worker from configuration.
func NewWorker(cfg *config.ArchiveConfig, store EventStore, log *slog.Logger) (*Worker, error) {
	if log == nil {
		log = slog.Default()
	}

	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}
	if cfg.Endpoint != "" {
		endpointURL := cfg.Endpoint
		if !strings.HasPrefix(endpointURL, "http://") && !strings.HasPrefix(endpointURL, "https://") {
			protocol := "http"
			if cfg.UseSSL {
				protocol = "https"
			}
			endpointURL = protocol + "://" + endpointURL
		}
		opts.BaseEndpoint = aws.String(endpointURL)
		opts.UsePathStyle = true // MinIO compatibility
	}

	return &Worker{
		client:    s3.New(opts),
		bucket:    cfg.Bucket,
		store:     store,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		log:       log,
	}, nil
}

// Start runs the archiver in a background goroutine. The returned stop
// function terminates it.
func (w *Worker) Start() (stop func()) {
	ticker := time.NewTicker(w.interval)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := w.RunOnce(context.Background()); err != nil {
					metrics.ArchiveRunErrors.Inc()
					w.log.Error("archive run failed", "error", err)
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}

// RunOnce archives a single batch of events past the retention window.
func (w *Worker) RunOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-w.retention)

	evs, err := w.store.ListOlderThan(ctx, cutoff, w.batchSize)
	if err != nil {
		return fmt.Errorf("listing archivable events: %w", err)
	}
	if len(evs) == 0 {
		return nil
	}

	body, err := json.Marshal(evs)
	if err != nil {
		return fmt.Errorf("encoding archive batch: %w", err)
	}

	key := fmt.Sprintf("events/%s/%s.json", time.Now().UTC().Format("2006-01-02"), uuid.New().String())
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("uploading archive batch: %w", err)
	}

	ids := make([]string, 0, len(evs))
	for i := range evs {
		ids = append(ids, evs[i].ID)
	}
	deleted, err := w.store.DeleteByIDs(ctx, ids)
	if err != nil {
		// The batch is uploaded but the rows remain; the next run will
		// upload them again under a new key rather than lose them.
		return fmt.Errorf("pruning archived events: %w", err)
	}

	metrics.ArchivedEventsTotal.Add(float64(len(evs)))
	w.log.Info("archived events", "count", len(evs), "deleted", deleted, "key", key)
	return nil
}
