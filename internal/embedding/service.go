package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
)

const (
	// DefaultMaxChars is the input length, in characters, beyond which text is truncated.
	DefaultMaxChars = 2000
	// DefaultBatchSize is the number of texts sent to the provider per call.
	DefaultBatchSize = 32
)

// Recorder receives embedding metrics. A nil Recorder disables recording.
type Recorder interface {
	ObserveEmbedding(operation string, batch int, duration time.Duration, err error)
	ObserveCache(hit bool)
}

// Options configures a Service.
type Options struct {
	// Model labels log lines and metrics.
	Model string
	// MaxChars truncates longer inputs. Defaults to DefaultMaxChars.
	MaxChars int
	// BatchSize bounds texts per provider call. Defaults to DefaultBatchSize.
	BatchSize int
	// CacheSize is the number of vectors kept in the LRU cache. Zero disables caching.
	CacheSize int
	// Dimension is reported by Dimension before the model is loaded.
	Dimension int
	Recorder  Recorder
}

// Service is an Embedder backed by a lazily loaded Provider. The provider is
// loaded once on first use or by Initialize, and released by Shutdown.
// All methods are safe for concurrent use.
type Service struct {
	load  LoaderFunc
	opts  Options
	group singleflight.Group

	// mu guards provider. Embedding calls hold the read lock so Shutdown
	// waits for in-flight requests before closing the model.
	mu       sync.RWMutex
	provider Provider

	cache *lru.Cache[string, []float32]
}

// NewService creates a Service. The loader is not called until the first
// embedding request or Initialize.
func NewService(load LoaderFunc, opts Options) (*Service, error) {
	if load == nil {
		return nil, fmt.Errorf("%w: embedding loader is required", domain.ErrValidation)
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}

	s := &Service{load: load, opts: opts}
	if opts.CacheSize > 0 {
		cache, err := lru.New[string, []float32](opts.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("creating embedding cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Initialize loads the model if it is not loaded yet. Concurrent callers share
// a single load. If ctx ends first, Initialize returns ErrTimeout while the
// load carries on for the other waiters.
func (s *Service) Initialize(ctx context.Context) error {
	_, err := s.ensureLoaded(ctx)
	return err
}

// Ready reports whether the model is loaded.
func (s *Service) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider != nil
}

// Shutdown releases the model and clears the cache. A later call loads the
// model again.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	p := s.provider
	s.provider = nil
	if s.cache != nil {
		s.cache.Purge()
	}
	s.mu.Unlock()

	if p == nil {
		return nil
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "releasing embedding model", "model", s.opts.Model)
	return p.Close()
}

// Dimension returns the loaded model's dimension, or the configured hint
// before the model is loaded.
func (s *Service) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider != nil {
		return s.provider.Dimension()
	}
	return s.opts.Dimension
}

func (s *Service) ensureLoaded(ctx context.Context) (Provider, error) {
	s.mu.RLock()
	p := s.provider
	s.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	logger := contextutil.LoggerFromContext(ctx)
	ch := s.group.DoChan("load", func() (any, error) {
		s.mu.RLock()
		existing := s.provider
		s.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		start := time.Now()
		logger.InfoContext(ctx, "loading embedding model", "model", s.opts.Model)
		loaded, err := s.load(context.WithoutCancel(ctx))
		if err != nil {
			logger.ErrorContext(ctx, "embedding model load failed", "model", s.opts.Model, "error", err)
			return nil, err
		}
		logger.InfoContext(ctx, "embedding model loaded",
			"model", s.opts.Model,
			"dimension", loaded.Dimension(),
			"duration_ms", time.Since(start).Milliseconds(),
		)

		s.mu.Lock()
		s.provider = loaded
		s.mu.Unlock()
		return loaded, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for embedding model: %v", domain.ErrTimeout, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("%w: loading model %q: %v", domain.ErrEmbedding, s.opts.Model, res.Err)
		}
		return res.Val.(Provider), nil
	}
}

// withProvider runs fn with the loaded provider under the read lock.
func (s *Service) withProvider(ctx context.Context, fn func(Provider) error) error {
	if _, err := s.ensureLoaded(ctx); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.provider == nil {
		return fmt.Errorf("%w: embedding model was shut down", domain.ErrEmbedding)
	}
	return fn(s.provider)
}

// Embed returns the normalized query vector for text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrEmbedding)
	}
	text = truncate(text, s.opts.MaxChars)

	key := cacheKey("query", text)
	if vec, ok := s.cached(key); ok {
		return vec, nil
	}

	start := time.Now()
	var vec []float32
	err := s.withProvider(ctx, func(p Provider) error {
		v, err := p.EmbedQuery(ctx, text)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
		}
		vec = v
		return nil
	})
	s.observe("embed", 1, start, err)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty vector", domain.ErrEmbedding)
	}

	vec = Normalize(vec)
	s.store(key, vec)
	return clone(vec), nil
}

// EmbedBatch returns normalized passage vectors for texts, in input order.
// Cached vectors are reused; the rest are sent to the provider in batches.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty input", domain.ErrEmbedding)
	}

	out := make([][]float32, len(texts))
	inputs := make([]string, len(texts))
	keys := make([]string, len(texts))
	var pending []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("%w: empty input at index %d", domain.ErrEmbedding, i)
		}
		inputs[i] = truncate(t, s.opts.MaxChars)
		keys[i] = cacheKey("passage", inputs[i])
		if vec, ok := s.cached(keys[i]); ok {
			out[i] = vec
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(pending))
		idx := pending[start:end]
		batch := make([]string, len(idx))
		for j, i := range idx {
			batch[j] = inputs[i]
		}

		began := time.Now()
		var vecs [][]float32
		err := s.withProvider(ctx, func(p Provider) error {
			v, err := p.EmbedDocuments(ctx, batch)
			if err != nil {
				return fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
			}
			if len(v) != len(batch) {
				return fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrEmbedding, len(batch), len(v))
			}
			vecs = v
			return nil
		})
		s.observe("embed_batch", len(batch), began, err)
		if err != nil {
			return nil, err
		}

		for j, i := range idx {
			if len(vecs[j]) == 0 {
				return nil, fmt.Errorf("%w: provider returned an empty vector at index %d", domain.ErrEmbedding, i)
			}
			vec := Normalize(vecs[j])
			s.store(keys[i], vec)
			out[i] = clone(vec)
		}
	}
	return out, nil
}

func (s *Service) cached(key string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	vec, ok := s.cache.Get(key)
	if s.opts.Recorder != nil {
		s.opts.Recorder.ObserveCache(ok)
	}
	if !ok {
		return nil, false
	}
	return clone(vec), true
}

func (s *Service) store(key string, vec []float32) {
	if s.cache != nil {
		s.cache.Add(key, clone(vec))
	}
}

func (s *Service) observe(op string, batch int, start time.Time, err error) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.ObserveEmbedding(op, batch, time.Since(start), err)
	}
}

// Normalize scales vec to unit length in place and returns it. A zero vector
// is returned unchanged.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
	return vec
}

// truncate cuts text to at most limit characters.
func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func cacheKey(kind, text string) string {
	sum := sha256.Sum256([]byte(text))
	return kind + ":" + hex.EncodeToString(sum[:])
}

func clone(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)
	return out
}
