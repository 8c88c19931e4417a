// Package ingest registers media files as transcription jobs: identity,
// display title, media type detection, and hash-based duplicate detection.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"scribe/internal/logging"
	"scribe/internal/queue"
)

var videoExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".mov": {}, ".avi": {}, ".webm": {}, ".m4v": {}, ".ts": {},
}

var audioExtensions = map[string]struct{}{
	".mp3": {}, ".wav": {}, ".m4a": {}, ".flac": {}, ".ogg": {}, ".aac": {}, ".opus": {}, ".wma": {},
}

// Result reports the outcome of a registration. Duplicate is set when an
// existing job already covers the same content; Job then points at that
// existing record.
type Result struct {
	Job       *queue.Job
	Duplicate bool
}

// Registrar creates queue jobs from media files on disk.
type Registrar struct {
	store  *queue.Store
	logger *slog.Logger
}

// New constructs a Registrar.
func New(store *queue.Store, logger *slog.Logger) *Registrar {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registrar{store: store, logger: logger}
}

// Register creates a waiting job for the media file at path. Content already
// known by hash is not registered twice.
func (r *Registrar) Register(ctx context.Context, path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path %s: %w", path, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat media file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", abs)
	}

	mediaType := MediaTypeFor(abs)
	if mediaType == "" {
		return nil, fmt.Errorf("unsupported file type %s", filepath.Ext(abs))
	}

	hash, err := hashFile(abs)
	if err != nil {
		return nil, fmt.Errorf("hash media file: %w", err)
	}

	existing, err := r.store.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.FileSize == info.Size() {
		r.logger.Info("duplicate media skipped",
			logging.String("path", abs),
			logging.String("existing_job", existing.ID),
		)
		return &Result{Job: existing, Duplicate: true}, nil
	}

	job := &queue.Job{
		ID:         NewID(),
		Name:       InferName(abs),
		SourcePath: abs,
		MediaType:  mediaType,
		FileSize:   info.Size(),
		FileHash:   hash,
		Status:     queue.StatusWaiting,
	}
	if err := r.store.Insert(ctx, job); err != nil {
		return nil, err
	}

	r.logger.Info("media registered",
		logging.String("job_id", job.ID),
		logging.String("name", job.Name),
		logging.String("media_type", mediaType),
		logging.Int64("file_size", info.Size()),
	)
	return &Result{Job: job}, nil
}

// NewID returns a fresh job identifier.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MediaTypeFor classifies a path by extension as "video", "audio", or ""
// when unsupported.
func MediaTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := videoExtensions[ext]; ok {
		return "video"
	}
	if _, ok := audioExtensions[ext]; ok {
		return "audio"
	}
	return ""
}

// InferName derives a display title from the file name: extension stripped,
// separators normalized to spaces, title-cased.
func InferName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	for _, sep := range []string{"_", "-", "."} {
		base = strings.ReplaceAll(base, sep, " ")
	}
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "Untitled"
	}
	return cases.Title(language.Und, cases.NoLower).String(base)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
