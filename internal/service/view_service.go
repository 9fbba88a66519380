// Package service implements view recording and reading on top of a counter store.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/devrev/viewcounter/internal/config"
	"github.com/devrev/viewcounter/internal/store"
	"go.uber.org/zap"
)

// ErrInvalidInput is returned when a slug or request is malformed.
var ErrInvalidInput = errors.New("invalid input")

// Outcome is the result of a RecordView call
type Outcome int

const (
	// OutcomeFailed means the store could not be reached; nothing is known to be counted.
	OutcomeFailed Outcome = iota
	// OutcomeCounted means the counter was incremented.
	OutcomeCounted
	// OutcomeDeduplicated means the client already viewed the slug inside the dedup window.
	OutcomeDeduplicated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCounted:
		return "counted"
	case OutcomeDeduplicated:
		return "deduplicated"
	default:
		return "failed"
	}
}

// Recorder receives view outcomes and absorbed read failures
type Recorder interface {
	RecordView(collection, outcome string)
	RecordReadFallback(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordView(string, string) {}
func (nopRecorder) RecordReadFallback(string) {}

// ViewService records and reads page views
type ViewService struct {
	store            store.CounterStore
	readCollection   string
	recordCollection string
	dedupWindow      time.Duration
	maxSlugLength    int
	recorder         Recorder
	logger           *zap.Logger
}

// NewViewService creates a new view service. recorder may be nil.
func NewViewService(
	counterStore store.CounterStore,
	cfg config.ViewsConfig,
	recorder Recorder,
	logger *zap.Logger,
) *ViewService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &ViewService{
		store:            counterStore,
		readCollection:   cfg.ReadCollection,
		recordCollection: cfg.RecordCollection,
		dedupWindow:      cfg.DedupWindow,
		maxSlugLength:    cfg.MaxSlugLength,
		recorder:         recorder,
		logger:           logger,
	}
}

// Fingerprint derives an opaque dedup token from a raw client identity.
// The raw identity is never stored.
func Fingerprint(rawIdentity string) string {
	hash := sha256.Sum256([]byte(rawIdentity))
	return hex.EncodeToString(hash[:])
}

// RecordView counts one view of slug unless the client at clientAddress
// already viewed it within the dedup window. An empty clientAddress skips dedup.
func (s *ViewService) RecordView(ctx context.Context, collection, slug, clientAddress string) (Outcome, error) {
	if slug == "" {
		return OutcomeFailed, fmt.Errorf("%w: slug is required", ErrInvalidInput)
	}
	if collection == "" {
		collection = s.recordCollection
	}

	if clientAddress != "" {
		// The dedup marker is scoped to slug only, so the same slug in two
		// collections shares one window.
		dedupKey := store.DedupKey(Fingerprint(clientAddress), slug)
		isNew, err := s.store.SetNX(ctx, dedupKey, true, s.dedupWindow)
		if err != nil {
			return s.recordFailure(collection, slug, "claim dedup marker", err)
		}
		if !isNew {
			s.logger.Debug("view deduplicated",
				zap.String("collection", collection),
				zap.String("slug", slug))
			s.recorder.RecordView(collection, OutcomeDeduplicated.String())
			return OutcomeDeduplicated, nil
		}
	}

	views, err := s.store.Incr(ctx, store.CounterKey(collection, slug))
	if err != nil {
		return s.recordFailure(collection, slug, "increment counter", err)
	}

	s.logger.Debug("view counted",
		zap.String("collection", collection),
		zap.String("slug", slug),
		zap.Int64("views", views))
	s.recorder.RecordView(collection, OutcomeCounted.String())
	return OutcomeCounted, nil
}

func (s *ViewService) recordFailure(collection, slug, step string, err error) (Outcome, error) {
	s.logger.Error("failed to record view",
		zap.String("collection", collection),
		zap.String("slug", slug),
		zap.String("step", step),
		zap.Error(err))
	s.recorder.RecordView(collection, OutcomeFailed.String())
	return OutcomeFailed, fmt.Errorf("failed to %s: %w", step, err)
}

// IncrementView increments the counter without dedup and returns the new
// count, or 0 if the store is unavailable.
func (s *ViewService) IncrementView(ctx context.Context, collection, slug string) int64 {
	if slug == "" {
		return 0
	}
	if collection == "" {
		collection = s.recordCollection
	}

	views, err := s.store.Incr(ctx, store.CounterKey(collection, slug))
	if err != nil {
		s.logger.Error("failed to increment view count",
			zap.String("collection", collection),
			zap.String("slug", slug),
			zap.Error(err))
		s.recorder.RecordView(collection, OutcomeFailed.String())
		return 0
	}
	s.recorder.RecordView(collection, OutcomeCounted.String())
	return views
}

// GetView returns the view count of slug. The count is 0 when the counter was
// never incremented or the store failed; in the latter case the error is
// returned too so callers can signal it, but the count stays usable.
func (s *ViewService) GetView(ctx context.Context, collection, slug string) (int64, error) {
	if collection == "" {
		collection = s.readCollection
	}

	views, _, err := s.store.Get(ctx, store.CounterKey(collection, slug))
	if err != nil {
		s.logger.Error("failed to fetch views",
			zap.String("collection", collection),
			zap.String("slug", slug),
			zap.Error(err))
		s.recorder.RecordReadFallback("get")
		return 0, fmt.Errorf("failed to fetch views: %w", err)
	}
	if views < 0 {
		views = 0
	}
	return views, nil
}

// ValidSlugs drops empty and overlong slugs and collapses duplicates,
// keeping first-seen order. Length is counted in characters, not bytes.
func (s *ViewService) ValidSlugs(slugs []string) []string {
	seen := make(map[string]struct{}, len(slugs))
	valid := make([]string, 0, len(slugs))
	for _, slug := range slugs {
		if slug == "" || utf8.RuneCountInString(slug) >= s.maxSlugLength {
			continue
		}
		if _, dup := seen[slug]; dup {
			continue
		}
		seen[slug] = struct{}{}
		valid = append(valid, slug)
	}
	return valid
}

// GetViewsBatch returns the view count of every valid slug in one store round
// trip. Missing counters read as 0. On store failure every valid slug maps to
// 0 and the error is returned alongside.
func (s *ViewService) GetViewsBatch(ctx context.Context, collection string, slugs []string) (map[string]int64, error) {
	if collection == "" {
		collection = s.readCollection
	}

	valid := s.ValidSlugs(slugs)
	result := make(map[string]int64, len(valid))
	if len(valid) == 0 {
		return result, nil
	}

	keys := make([]string, len(valid))
	for i, slug := range valid {
		keys[i] = store.CounterKey(collection, slug)
	}

	values, err := s.store.MGet(ctx, keys)
	if err == nil && len(values) != len(keys) {
		err = fmt.Errorf("%w: got %d values for %d keys", store.ErrStoreUnavailable, len(values), len(keys))
	}
	if err != nil {
		s.logger.Error("failed to fetch multiple views",
			zap.String("collection", collection),
			zap.Int("slugs", len(valid)),
			zap.Error(err))
		s.recorder.RecordReadFallback("mget")
		for _, slug := range valid {
			result[slug] = 0
		}
		return result, fmt.Errorf("failed to fetch multiple views: %w", err)
	}

	for i, slug := range valid {
		var views int64
		if values[i] != nil && *values[i] > 0 {
			views = *values[i]
		}
		result[slug] = views
	}
	return result, nil
}

// Ping checks that the underlying store is reachable.
func (s *ViewService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
