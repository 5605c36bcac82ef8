package places

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wanderer-app/wanderer/internal/app/domain/geoclient"
	"github.com/wanderer-app/wanderer/internal/app/models"
	"github.com/wanderer-app/wanderer/internal/app/observability/metrics"
	"github.com/wanderer-app/wanderer/internal/pkg/cache"
	"github.com/wanderer-app/wanderer/internal/pkg/geo"
)

// Backend fetches raw places of one category around a point.
type Backend interface {
	Name() string
	FetchCategory(ctx context.Context, origin models.Coordinate, radiusMeters int, category models.PlaceCategory) ([]geoclient.RawPlace, error)
}

// Service answers nearby-place searches: quantized-key cache in front,
// concurrent per-category backend sub-queries behind, an alternate backend
// when the primary's mirrors are exhausted, and the last good result set as
// the final cushion.
type Service struct {
	primary   Backend
	alternate Backend
	cache     *cache.TTLCache[[]models.Place]
	logger    *zap.Logger

	searchTimeout  time.Duration
	defaultRadius  int
	maxPerCategory int

	// Supersede state: a new search cancels the in-flight one, and only the
	// newest attempt may commit results to the cache.
	mu         sync.Mutex
	generation uint64
	cancelPrev context.CancelFunc

	lastGoodMu sync.RWMutex
	lastGood   []models.Place
}

// ServiceConfig carries the service's collaborators and tuning.
type ServiceConfig struct {
	Primary        Backend
	Alternate      Backend
	CacheTTL       time.Duration
	SearchTimeout  time.Duration
	DefaultRadius  int
	MaxPerCategory int
	Logger         *zap.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	searchTimeout := cfg.SearchTimeout
	if searchTimeout <= 0 {
		searchTimeout = 12 * time.Second
	}
	defaultRadius := cfg.DefaultRadius
	if defaultRadius <= 0 {
		defaultRadius = 2000
	}
	maxPerCategory := cfg.MaxPerCategory
	if maxPerCategory <= 0 {
		maxPerCategory = 10
	}
	return &Service{
		primary:        cfg.Primary,
		alternate:      cfg.Alternate,
		cache:          cache.NewTTLCache[[]models.Place](ttl, "nearby_places", logger),
		logger:         logger,
		searchTimeout:  searchTimeout,
		defaultRadius:  defaultRadius,
		maxPerCategory: maxPerCategory,
	}
}

// DefaultRadius exposes the configured fallback radius for handlers.
func (s *Service) DefaultRadius() int { return s.defaultRadius }

// Search returns nearby places for a coordinate and mode. A live cache entry
// short-circuits the network entirely; otherwise category sub-queries run
// concurrently under one deadline. Starting a new search cancels the
// previous in-flight one, which then resolves with ErrSuperseded.
func (s *Service) Search(ctx context.Context, origin models.Coordinate, mode models.SearchMode, radiusMeters int) ([]models.Place, error) {
	if radiusMeters <= 0 {
		radiusMeters = s.defaultRadius
	}

	start := time.Now()
	if m := metrics.Get(); m != nil {
		m.SearchRequestsTotal.Add(ctx, 1)
	}

	key := geo.QuantizeKey(origin, radiusMeters, mode)
	if cached, ok := s.cache.Get(key); ok {
		if m := metrics.Get(); m != nil {
			m.SearchCacheHitsTotal.Add(ctx, 1)
		}
		return cached, nil
	}
	if m := metrics.Get(); m != nil {
		m.SearchCacheMissTotal.Add(ctx, 1)
	}

	gen, ctx := s.begin(ctx)
	defer s.end(gen)

	ctx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	categories := mode.Categories()
	results := make([][]models.Place, len(categories))
	errs := make([]error, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	for i, category := range categories {
		g.Go(func() error {
			raws, err := s.fetchCategory(gctx, origin, radiusMeters, category)
			if err != nil {
				// A failed category degrades the result set instead of
				// aborting the sibling sub-queries.
				errs[i] = err
				return nil
			}
			results[i] = normalizeCategory(origin, category, raws)
			return nil
		})
	}
	_ = g.Wait()

	var combined []models.Place
	failed := 0
	for i := range categories {
		if errs[i] != nil {
			failed++
			s.logger.Warn("Category sub-query failed",
				zap.String("category", string(categories[i])),
				zap.Error(errs[i]),
			)
			continue
		}
		combined = append(combined, results[i]...)
	}

	if !s.isCurrent(gen) {
		return nil, models.ErrSuperseded
	}

	if failed == len(categories) {
		// Total failure: fall back to the last good result set before
		// surfacing an error.
		if last := s.lastGoodResults(); last != nil {
			s.logger.Warn("All category sub-queries failed, serving last good results",
				zap.Int("places", len(last)),
			)
			return last, nil
		}
		return nil, errs[0]
	}

	places := dedupeAndRank(combined, s.maxPerCategory)

	if !s.isCurrent(gen) {
		return nil, models.ErrSuperseded
	}
	s.cache.Set(key, places)
	if len(places) > 0 {
		s.setLastGood(places)
	}

	if m := metrics.Get(); m != nil {
		m.SearchDuration.Record(ctx, time.Since(start).Seconds())
	}
	s.logger.Debug("Nearby search completed",
		zap.String("mode", string(mode)),
		zap.Int("radius_m", radiusMeters),
		zap.Int("places", len(places)),
		zap.Int("failed_categories", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return places, nil
}

// fetchCategory tries the primary backend (which itself fails over across
// its mirrors) and then the alternate, when one is configured.
func (s *Service) fetchCategory(ctx context.Context, origin models.Coordinate, radiusMeters int, category models.PlaceCategory) ([]geoclient.RawPlace, error) {
	raws, err := s.primary.FetchCategory(ctx, origin, radiusMeters, category)
	if err == nil {
		return raws, nil
	}
	if m := metrics.Get(); m != nil {
		m.ProviderErrorsTotal.Add(ctx, 1)
	}
	if s.alternate == nil || ctx.Err() != nil {
		return nil, err
	}

	s.logger.Info("Primary backend exhausted, trying alternate",
		zap.String("primary", s.primary.Name()),
		zap.String("alternate", s.alternate.Name()),
		zap.String("category", string(category)),
		zap.Error(err),
	)
	raws, altErr := s.alternate.FetchCategory(ctx, origin, radiusMeters, category)
	if altErr != nil {
		if m := metrics.Get(); m != nil {
			m.ProviderErrorsTotal.Add(ctx, 1)
		}
		return nil, err
	}
	return raws, nil
}

// CacheMetrics exposes the result cache counters.
func (s *Service) CacheMetrics() cache.Metrics {
	return s.cache.GetMetrics()
}

func (s *Service) begin(ctx context.Context) (uint64, context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelPrev != nil {
		s.cancelPrev()
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancelPrev = cancel
	s.generation++
	return s.generation, ctx
}

func (s *Service) end(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen && s.cancelPrev != nil {
		s.cancelPrev()
		s.cancelPrev = nil
	}
}

func (s *Service) isCurrent(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (s *Service) lastGoodResults() []models.Place {
	s.lastGoodMu.RLock()
	defer s.lastGoodMu.RUnlock()
	if s.lastGood == nil {
		return nil
	}
	out := make([]models.Place, len(s.lastGood))
	copy(out, s.lastGood)
	return out
}

func (s *Service) setLastGood(places []models.Place) {
	s.lastGoodMu.Lock()
	defer s.lastGoodMu.Unlock()
	s.lastGood = make([]models.Place, len(places))
	copy(s.lastGood, places)
}
