package location

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/wanderer-app/wanderer/internal/app/domain/geoclient"
	"github.com/wanderer-app/wanderer/internal/app/models"
	"github.com/wanderer-app/wanderer/internal/app/observability/metrics"
)

// PositionProvider yields a device-grade position reading. In the HTTP
// deployment this is backed by coordinates the client pushed with its
// request; a nil provider means no device capability.
type PositionProvider interface {
	Current(ctx context.Context) (models.Coordinate, error)
}

// WatchProvider streams position readings for continuous mode. The stream
// must terminate when the context is cancelled.
type WatchProvider interface {
	Watch(ctx context.Context) (<-chan models.Coordinate, error)
}

// IPLocator estimates a coordinate from the network origin.
type IPLocator interface {
	Locate(ctx context.Context) (models.Coordinate, error)
}

// Geocoder resolves a coordinate to a display name and country.
type Geocoder interface {
	Reverse(ctx context.Context, coord models.Coordinate) (*geoclient.PlaceInfo, error)
}

// HistoryRecorder persists successful resolutions; best effort.
type HistoryRecorder interface {
	CreateLocationHistory(ctx context.Context, history *models.LocationHistory) error
}

// AutoRequestPolicy controls when the device source may be triggered.
type AutoRequestPolicy int

const (
	// PolicyAlways acquires a fresh device position on every call.
	PolicyAlways AutoRequestPolicy = iota
	// PolicyOncePerSession reuses the first successful resolution until
	// Refresh is called.
	PolicyOncePerSession
	// PolicyNever skips the device source and relies on the fallbacks.
	PolicyNever
)

// Options tune one resolution attempt.
type Options struct {
	HighAccuracy  bool
	DeviceTimeout time.Duration
	IPTimeout     time.Duration
	Policy        AutoRequestPolicy
	UserID        string
}

// Resolver produces the best available ResolvedLocation through an ordered
// fallback chain: device position, IP estimate, persisted last-known. Steps
// run strictly sequentially; a later step starts only after the previous one
// has definitively failed. Only exhaustion of all three surfaces an error.
type Resolver struct {
	device  PositionProvider
	watcher WatchProvider
	ip      IPLocator
	geo     Geocoder
	store   *Store
	history HistoryRecorder
	logger  *zap.Logger

	defaultDeviceTimeout time.Duration
	defaultIPTimeout     time.Duration

	// One authoritative in-flight attempt at a time: a new attempt cancels
	// the previous one, and completions check they still own the slot
	// before committing to shared state.
	mu         sync.Mutex
	generation uint64
	cancelPrev context.CancelFunc
}

// ResolverConfig carries the resolver's collaborators.
type ResolverConfig struct {
	Device        PositionProvider
	Watcher       WatchProvider
	IP            IPLocator
	Geocoder      Geocoder
	Store         *Store
	History       HistoryRecorder
	DeviceTimeout time.Duration
	IPTimeout     time.Duration
	Logger        *zap.Logger
}

func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	deviceTimeout := cfg.DeviceTimeout
	if deviceTimeout <= 0 {
		deviceTimeout = 10 * time.Second
	}
	ipTimeout := cfg.IPTimeout
	if ipTimeout <= 0 {
		ipTimeout = 6 * time.Second
	}
	return &Resolver{
		device:               cfg.Device,
		watcher:              cfg.Watcher,
		ip:                   cfg.IP,
		geo:                  cfg.Geocoder,
		store:                cfg.Store,
		history:              cfg.History,
		logger:               logger,
		defaultDeviceTimeout: deviceTimeout,
		defaultIPTimeout:     ipTimeout,
	}
}

// Resolve runs one pass through the fallback chain. A superseded attempt
// returns ErrSuperseded and commits nothing.
func (r *Resolver) Resolve(ctx context.Context, opts Options) (*models.ResolvedLocation, error) {
	if m := metrics.Get(); m != nil {
		m.ResolveRequestsTotal.Add(ctx, 1)
	}

	if opts.Policy == PolicyOncePerSession {
		if cached := r.store.SessionLocation(); cached != nil {
			r.logger.Debug("Session gate hit, reusing resolution")
			return cached, nil
		}
	}

	gen, ctx := r.begin(ctx)
	defer r.end(gen)

	// Step 1: device position.
	if r.device != nil && opts.Policy != PolicyNever {
		deviceTimeout := opts.DeviceTimeout
		if deviceTimeout <= 0 {
			deviceTimeout = r.defaultDeviceTimeout
		}
		stepCtx, cancel := context.WithTimeout(ctx, deviceTimeout)
		coord, err := r.device.Current(stepCtx)
		cancel()
		if err == nil {
			return r.finish(ctx, gen, coord, "device", opts.UserID)
		}
		if errors.Is(err, models.ErrSuperseded) || ctx.Err() != nil {
			return nil, models.ErrSuperseded
		}
		r.logger.Info("Device position unavailable, falling back to IP lookup", zap.Error(err))
	}

	// Step 2: IP estimate.
	var ipErr error
	if r.ip != nil {
		ipTimeout := opts.IPTimeout
		if ipTimeout <= 0 {
			ipTimeout = r.defaultIPTimeout
		}
		stepCtx, cancel := context.WithTimeout(ctx, ipTimeout)
		coord, err := r.ip.Locate(stepCtx)
		cancel()
		if err == nil {
			r.recordFallback(ctx, "ip")
			return r.finish(ctx, gen, coord, "ip", opts.UserID)
		}
		if ctx.Err() != nil {
			return nil, models.ErrSuperseded
		}
		ipErr = err
		r.logger.Info("IP lookup failed, falling back to last-known location", zap.Error(err))
	}

	// Step 3: persisted last-known, marked stale but not an error.
	if last := r.store.LastKnown(); last != nil {
		last.Stale = true
		r.recordFallback(ctx, "last_known")
		return last, nil
	}

	// Terminal failure: the chain is exhausted.
	if r.device == nil && r.ip == nil {
		return nil, models.ErrUnsupported
	}
	if ipErr != nil && errors.Is(ipErr, models.ErrUnsupported) {
		return nil, models.ErrUnsupported
	}
	return nil, models.ErrNetworkError
}

// Refresh forces a new acquisition, bypassing the once-per-session gate.
func (r *Resolver) Refresh(ctx context.Context, opts Options) (*models.ResolvedLocation, error) {
	r.store.ClearSession()
	opts.Policy = PolicyAlways
	return r.Resolve(ctx, opts)
}

// WatchLocations starts continuous mode: it emits an updated
// ResolvedLocation for every device reading until stop is called or the
// context ends. Each reading is enriched and committed as the last-known
// location. A nil watcher falls back to the one configured at construction;
// with neither, the mode is unsupported.
func (r *Resolver) WatchLocations(ctx context.Context, watcher WatchProvider, opts Options) (<-chan models.ResolvedLocation, func(), error) {
	if watcher == nil {
		watcher = r.watcher
	}
	if watcher == nil {
		return nil, nil, models.ErrUnsupported
	}

	watchCtx, stop := context.WithCancel(ctx)
	readings, err := watcher.Watch(watchCtx)
	if err != nil {
		stop()
		return nil, nil, err
	}

	out := make(chan models.ResolvedLocation)
	go func() {
		defer close(out)
		for coord := range readings {
			resolved := r.enrich(watchCtx, coord, "device", opts.UserID)
			r.store.SetLastKnown(resolved)
			select {
			case out <- resolved:
			case <-watchCtx.Done():
				return
			}
		}
	}()
	return out, stop, nil
}

// recordFallback counts resolutions that fell past the device source.
func (r *Resolver) recordFallback(ctx context.Context, source string) {
	if m := metrics.Get(); m != nil {
		m.ResolveFallbacksTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("source", source)),
		)
	}
}

// begin registers a new authoritative attempt, cancelling the previous one.
func (r *Resolver) begin(ctx context.Context) (uint64, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancelPrev != nil {
		r.cancelPrev()
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancelPrev = cancel
	r.generation++
	return r.generation, ctx
}

func (r *Resolver) end(gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.generation == gen && r.cancelPrev != nil {
		r.cancelPrev()
		r.cancelPrev = nil
	}
}

func (r *Resolver) isCurrent(gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation == gen
}

// finish reverse-geocodes the coordinate and commits the resolution, unless
// a newer attempt has taken the authoritative slot in the meantime.
func (r *Resolver) finish(ctx context.Context, gen uint64, coord models.Coordinate, source, userID string) (*models.ResolvedLocation, error) {
	resolved := r.enrich(ctx, coord, source, userID)

	if !r.isCurrent(gen) {
		return nil, models.ErrSuperseded
	}

	r.store.SetLastKnown(resolved)
	r.store.MarkSession(resolved)
	return &resolved, nil
}

// enrich attaches reverse-geocoding results; any failure there degrades to a
// nil place name rather than failing the resolution. Successful readings are
// recorded to history asynchronously, best effort.
func (r *Resolver) enrich(ctx context.Context, coord models.Coordinate, source, userID string) models.ResolvedLocation {
	resolved := models.ResolvedLocation{
		Coordinate: coord,
		ResolvedAt: time.Now(),
	}

	if r.geo != nil {
		if info, err := r.geo.Reverse(ctx, coord); err == nil {
			if info.DisplayName != "" {
				name := info.DisplayName
				resolved.PlaceName = &name
			}
			if info.CountryCode != "" {
				code := info.CountryCode
				resolved.CountryCode = &code
			}
			if info.CountryName != "" {
				country := info.CountryName
				resolved.CountryName = &country
			}
		} else {
			r.logger.Warn("Reverse geocoding failed, keeping bare coordinate", zap.Error(err))
		}
	}

	if r.history != nil && userID != "" {
		go func() {
			historyCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			entry := &models.LocationHistory{
				UserID:    userID,
				Latitude:  coord.Latitude,
				Longitude: coord.Longitude,
				Accuracy:  coord.AccuracyMeters,
				PlaceName: resolved.PlaceName,
				Source:    source,
			}
			if err := r.history.CreateLocationHistory(historyCtx, entry); err != nil {
				r.logger.Error("Failed to save location history",
					zap.String("user_id", userID),
					zap.Error(err),
				)
			}
		}()
	}

	return resolved
}
