package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/audioscribe/domain"
	"github.com/satriahrh/audioscribe/domain/entities"
	"github.com/satriahrh/audioscribe/domain/repositories"
	"github.com/satriahrh/audioscribe/internal/metrics"
)

// DefaultWorkers bounds how many files are transcribed at once
const DefaultWorkers = 4

var errEmptyUpload = errors.New("uploaded file is empty")

// Progress event types
const (
	EventBatchStarted = "batch_started"
	EventFileDone     = "file_done"
	EventBatchDone    = "batch_done"
)

// ProgressEvent describes the state of a running batch
type ProgressEvent struct {
	Type    string `json:"type"`
	Key     string `json:"key,omitempty"`
	Name    string `json:"name,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
	Done    int    `json:"done"`
	Total   int    `json:"total"`
}

// Observer receives progress events. It may be called from several
// goroutines at once.
type Observer func(ProgressEvent)

// BatchConfig tunes the batch processor
type BatchConfig struct {
	Workers   int           // 1 processes files sequentially
	Retention time.Duration // passed to the post-batch sweep
}

// BatchService turns a set of uploads into transcript results
type BatchService struct {
	transcriber *TranscriptionService
	converter   repositories.FormatConverter
	store       repositories.TempStore
	metrics     *metrics.Metrics
	workers     int
	retention   time.Duration
	logger      *zap.Logger
}

// unit is one prepared upload waiting for transcription
type unit struct {
	record entities.UploadRecord
	ext    string
}

// NewBatchService creates a new batch service
func NewBatchService(
	transcriber *TranscriptionService,
	converter repositories.FormatConverter,
	store repositories.TempStore,
	m *metrics.Metrics,
	config BatchConfig,
	logger *zap.Logger,
) *BatchService {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.Retention <= 0 {
		config.Retention = 600 * time.Second
	}
	return &BatchService{
		transcriber: transcriber,
		converter:   converter,
		store:       store,
		metrics:     m,
		workers:     config.Workers,
		retention:   config.Retention,
		logger:      logger,
	}
}

// Ready reports whether uploads can be processed at all
func (s *BatchService) Ready() error {
	return s.transcriber.Ready()
}

// ProviderName returns the name of the speech-to-text provider in use
func (s *BatchService) ProviderName() string {
	return s.transcriber.ProviderName()
}

// Process transcribes every upload and returns one result per upload
func (s *BatchService) Process(ctx context.Context, uploads []entities.Upload) (map[string]entities.TranscriptResult, error) {
	return s.ProcessWithObserver(ctx, uploads, nil)
}

// ProcessWithObserver is Process with progress reporting. The only error
// it returns is a missing prerequisite, in which case nothing was touched.
func (s *BatchService) ProcessWithObserver(ctx context.Context, uploads []entities.Upload, observe Observer) (map[string]entities.TranscriptResult, error) {
	if err := s.transcriber.Ready(); err != nil {
		s.logger.Warn("Refusing to process batch", zap.Error(err))
		if !errors.Is(err, domain.ErrMissingCredential) {
			err = fmt.Errorf("%w: %v", domain.ErrMissingCredential, err)
		}
		return nil, err
	}
	if observe == nil {
		observe = func(ProgressEvent) {}
	}

	total := len(uploads)
	results := make(map[string]entities.TranscriptResult, total)
	observe(ProgressEvent{Type: EventBatchStarted, Total: total})

	s.logger.Info("Processing batch",
		zap.Int("files", total),
		zap.String("provider", s.transcriber.ProviderName()))

	// Prepare sequentially; failures become results right away
	units := make([]unit, 0, total)
	for _, upload := range uploads {
		u, err := s.prepare(upload)
		if err != nil {
			key := s.uniqueKey(newKey("", upload.Name), results, units)
			results[key] = entities.ErrorResult(upload.Name, "Failed to prepare upload - "+err.Error())
			observe(ProgressEvent{Type: EventFileDone, Key: key, Name: upload.Name, IsError: true, Done: len(results), Total: total})
			continue
		}
		u.record.Key = s.uniqueKey(u.record.Key, results, units)
		units = append(units, u)
	}

	if len(units) > 0 {
		slots := make([]entities.TranscriptResult, len(units))
		var done atomic.Int32
		prepared := len(results)

		g := new(errgroup.Group)
		g.SetLimit(min(s.workers, len(units)))

		for i := range units {
			g.Go(func() error {
				slots[i] = s.runUnit(ctx, units[i])
				finished := int(done.Add(1))
				observe(ProgressEvent{
					Type:    EventFileDone,
					Key:     units[i].record.Key,
					Name:    units[i].record.OriginalName,
					IsError: slots[i].IsError(),
					Done:    prepared + finished,
					Total:   total,
				})
				return nil
			})
		}
		_ = g.Wait()

		for i, u := range units {
			results[u.record.Key] = slots[i]
			s.store.Release(u.record.TempPath)
		}
	}

	s.store.Sweep(s.retention)

	observe(ProgressEvent{Type: EventBatchDone, Done: total, Total: total})
	s.logger.Info("Batch complete", zap.Int("results", len(results)))
	return results, nil
}

// prepare sniffs the upload, allocates a temp file and writes the bytes
func (s *BatchService) prepare(upload entities.Upload) (unit, error) {
	if len(upload.Data) == 0 {
		return unit{}, errEmptyUpload
	}

	mtype := mimetype.Detect(upload.Data)
	if !isAudio(mtype) {
		s.logger.Info("Rejected non-audio upload",
			zap.String("name", upload.Name),
			zap.String("mime", mtype.String()))
		return unit{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mtype.String())
	}

	alloc, err := s.store.Allocate(upload.Name)
	if err != nil {
		return unit{}, fmt.Errorf("store upload: %w", err)
	}

	if err := os.WriteFile(alloc.Path, upload.Data, 0o600); err != nil {
		s.store.Release(alloc.Path)
		return unit{}, fmt.Errorf("store upload: %w", err)
	}

	return unit{
		record: entities.UploadRecord{
			Key:          newKey(alloc.Token, upload.Name),
			OriginalName: upload.Name,
			TempPath:     alloc.Path,
		},
		ext: strings.TrimPrefix(filepath.Ext(alloc.Path), "."),
	}, nil
}

// runUnit converts if needed, transcribes and releases every file it owns
func (s *BatchService) runUnit(ctx context.Context, u unit) (result entities.TranscriptResult) {
	start := time.Now()
	var owned []string
	owned = append(owned, u.record.TempPath)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Batch unit panicked",
				zap.String("key", u.record.Key),
				zap.Any("panic", r))
			result = entities.ErrorResult(u.record.OriginalName, fmt.Sprintf("Internal transcription failure - %v", r))
		}
		for _, path := range owned {
			s.store.Release(path)
		}
		status := metrics.StatusOK
		if result.IsError() {
			status = metrics.StatusError
		}
		s.metrics.RecordTranscription(ctx, status, time.Since(start))
	}()

	path := u.record.TempPath
	if !s.transcriber.Accepts(u.ext) {
		converted, err := s.convert(ctx, u)
		if converted != "" {
			owned = append(owned, converted)
		}
		if err != nil {
			return entities.ErrorResult(u.record.OriginalName, conversionMessage(err))
		}
		path = converted
	}

	text := s.transcriber.Transcribe(ctx, path)
	return entities.TranscriptResult{Name: u.record.OriginalName, Text: text}
}

// convert allocates a .wav sibling and runs the converter into it. The
// returned path is owned by the caller even when err is non-nil.
func (s *BatchService) convert(ctx context.Context, u unit) (string, error) {
	if err := s.converter.Available(); err != nil {
		return "", err
	}

	name := strings.TrimSuffix(u.record.OriginalName, filepath.Ext(u.record.OriginalName)) + ".wav"
	alloc, err := s.store.Allocate(name)
	if err != nil {
		return "", err
	}

	if err := s.converter.Convert(ctx, u.record.TempPath, alloc.Path); err != nil {
		s.logger.Warn("Audio conversion failed",
			zap.String("key", u.record.Key),
			zap.Error(err))
		return alloc.Path, err
	}
	return alloc.Path, nil
}

func conversionMessage(err error) string {
	if errors.Is(err, domain.ErrCodecNotFound) {
		return "Audio conversion is unavailable - " + err.Error() + ". Install ffmpeg or upload a supported format."
	}
	return "Failed to convert audio - " + err.Error()
}

// uniqueKey guards against a key already used by this batch
func (s *BatchService) uniqueKey(key string, results map[string]entities.TranscriptResult, units []unit) string {
	used := func(k string) bool {
		if _, ok := results[k]; ok {
			return true
		}
		for _, u := range units {
			if u.record.Key == k {
				return true
			}
		}
		return false
	}
	for used(key) {
		key = shortToken() + "_" + key
	}
	return key
}

func isAudio(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		mime := m.String()
		switch {
		case strings.HasPrefix(mime, "audio/"), strings.HasPrefix(mime, "video/"):
			return true
		case mime == "application/ogg":
			return true
		}
	}
	// Unrecognized binary may still be a format ffmpeg understands
	return mtype.Is("application/octet-stream")
}

func newKey(token, name string) string {
	if token == "" {
		token = shortToken()
	}
	return token + "_" + name
}

func shortToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
