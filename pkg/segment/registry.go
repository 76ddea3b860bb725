package segment

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/tessera/internal/logging"
	"github.com/aretw0/tessera/pkg/actions"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/ports"
	"github.com/aretw0/tessera/pkg/reducer"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultLockTTL bounds how long a distributed segment lock is held.
const DefaultLockTTL = 30 * time.Second

// Status is the lifecycle state of a segment id.
type Status int

const (
	StatusUnregistered Status = iota
	StatusUnloaded
	StatusLoading
	StatusLoaded
)

func (s Status) String() string {
	switch s {
	case StatusUnloaded:
		return "unloaded"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	}
	return "unregistered"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Config is what a loader resolves to: the sources and definitions to add.
// The keyed sets are added after the slices, in key order.
type Config struct {
	Reducers   []reducer.Source
	Actions    []*actions.Definition
	ReducerSet map[string]reducer.Source
	ActionSet  map[string]*actions.Definition
}

// Loader produces a segment. It runs at most once per successful load.
type Loader func(ctx context.Context) (Config, error)

// OnLoaded runs after the segment was applied, with the value returned by
// the registry's apply function and the caller-supplied load context.
type OnLoaded[T any] func(ctx context.Context, host T, loadContext map[string]any) error

// Info describes one registered segment.
type Info struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
}

type entry[T any] struct {
	loader   Loader
	onLoaded OnLoaded[T]
	status   Status
}

// Registry tracks segments and loads them exactly once.
type Registry[T any] struct {
	apply func(Config) (T, error)

	mu      sync.Mutex
	entries map[string]*entry[T]
	order   []string // registration order

	inflight singleflight.Group
	opts     options
}

type options struct {
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	logger      *slog.Logger
	hooks       domain.LifecycleHooks
	containerID string
	settled     func(id string)
}

// Option configures the Registry.
type Option func(*options)

// WithLocker holds a distributed lock (keyed by segment id) around loader calls.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

// WithSettled registers fn to run after every finished load, once the
// segment status is updated and before waiters return. A host that defers
// listener notification while applying a segment flushes it there, so
// listeners already see the segment as Loaded.
func WithSettled(fn func(id string)) Option {
	return func(o *options) {
		o.settled = fn
	}
}

// WithLockTTL overrides DefaultLockTTL.
func WithLockTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Registry.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLifecycleHooks registers segment observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(o *options) {
		o.hooks = hooks
	}
}

// WithContainerID labels emitted events.
func WithContainerID(id string) Option {
	return func(o *options) {
		o.containerID = id
	}
}

// NewRegistry creates a registry that applies loaded segments with apply.
func NewRegistry[T any](apply func(Config) (T, error), opts ...Option) *Registry[T] {
	r := &Registry[T]{
		apply:   apply,
		entries: make(map[string]*entry[T]),
		opts: options{
			lockTTL: DefaultLockTTL,
			logger:  logging.NewNop(),
		},
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r
}

// LoadOption configures one Load call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	context      map[string]any
	skipOnLoaded bool
}

// WithContext passes a context map to the segment's OnLoaded callback.
func WithContext(c map[string]any) LoadOption {
	return func(o *loadOptions) {
		o.context = c
	}
}

// SkipOnLoaded does not run the segment's OnLoaded callback.
func SkipOnLoaded() LoadOption {
	return func(o *loadOptions) {
		o.skipOnLoaded = true
	}
}

// Register adds a segment in the Unloaded state.
func (r *Registry[T]) Register(id string, loader Loader, onLoaded OnLoaded[T]) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateSegment, id)
	}
	r.entries[id] = &entry[T]{loader: loader, onLoaded: onLoaded, status: StatusUnloaded}
	r.order = append(r.order, id)
	return nil
}

// Load loads the segment id. Loading a Loaded segment is a no-op. A caller
// arriving while the segment is Loading waits for that load and gets its
// result; the options of the call that started the load apply.
// The loader itself is never canceled, but Load returns early with the
// context error when ctx is done first.
func (r *Registry[T]) Load(ctx context.Context, id string, opts ...LoadOption) error {
	status := r.Status(id)
	switch status {
	case StatusUnregistered:
		return fmt.Errorf("%w: %q", domain.ErrUnregisteredSegment, id)
	case StatusLoaded:
		return nil
	}

	lo := loadOptions{context: map[string]any{}}
	for _, opt := range opts {
		opt(&lo)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(id, func() (any, error) {
		return nil, r.load(loadCtx, id, lo)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry[T]) load(ctx context.Context, id string, lo loadOptions) error {
	r.mu.Lock()
	e := r.entries[id]
	// A load may have finished between the status check and this call.
	if e.status == StatusLoaded {
		r.mu.Unlock()
		return nil
	}
	e.status = StatusLoading
	loader, onLoaded := e.loader, e.onLoaded
	r.mu.Unlock()

	start := time.Now()
	r.fire(ctx, r.opts.hooks.OnSegmentLoading, domain.EventSegmentLoading, id, 0, nil)
	r.opts.logger.Debug("Loading segment", "segment_id", id)

	err := r.withLock(ctx, id, func(ctx context.Context) error {
		cfg, err := loader(ctx)
		if err != nil {
			return fmt.Errorf("segment %q loader failed: %w", id, err)
		}
		host, err := r.apply(cfg)
		if err != nil {
			return fmt.Errorf("segment %q could not be applied: %w", id, err)
		}
		if onLoaded != nil && !lo.skipOnLoaded {
			if err := onLoaded(ctx, host, lo.context); err != nil {
				return fmt.Errorf("segment %q onLoaded failed: %w", id, err)
			}
		}
		return nil
	})

	duration := time.Since(start)

	r.mu.Lock()
	if err != nil {
		e.status = StatusUnloaded
	} else {
		e.status = StatusLoaded
		e.loader, e.onLoaded = nil, nil
	}
	r.mu.Unlock()

	if r.opts.settled != nil {
		r.opts.settled(id)
	}

	if err != nil {
		r.fire(ctx, r.opts.hooks.OnSegmentFailed, domain.EventSegmentFailed, id, duration, err)
		r.opts.logger.Warn("Segment load failed", "segment_id", id, "err", err)
		return err
	}

	r.fire(ctx, r.opts.hooks.OnSegmentLoaded, domain.EventSegmentLoaded, id, duration, nil)
	r.opts.logger.Info("Segment loaded", "segment_id", id, "duration", duration)
	return nil
}

// withLock runs fn while holding the distributed lock for id, if configured.
func (r *Registry[T]) withLock(ctx context.Context, id string, fn func(context.Context) error) error {
	if r.opts.locker == nil {
		return fn(ctx)
	}

	unlock, err := r.opts.locker.Lock(ctx, id, r.opts.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire distributed lock: %w", err)
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			r.opts.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"segment_id", id,
				"err", err,
			)
		}
	}()

	return fn(ctx)
}

func (r *Registry[T]) fire(ctx context.Context, hook func(context.Context, *domain.SegmentEvent), typ domain.EventType, id string, d time.Duration, err error) {
	if hook == nil {
		return
	}
	hook(ctx, &domain.SegmentEvent{
		EventBase: domain.EventBase{
			Timestamp:   time.Now(),
			Type:        typ,
			ContainerID: r.opts.containerID,
		},
		SegmentID: id,
		Duration:  d,
		Err:       err,
	})
}

// LoadMany loads ids concurrently and returns once every load finished.
// The first error is returned; the other loads still complete.
func (r *Registry[T]) LoadMany(ctx context.Context, ids []string, opts ...LoadOption) error {
	var g errgroup.Group
	for _, id := range ids {
		g.Go(func() error {
			return r.Load(ctx, id, opts...)
		})
	}
	return g.Wait()
}

// LoadAll loads every registered segment.
func (r *Registry[T]) LoadAll(ctx context.Context, opts ...LoadOption) error {
	return r.LoadMany(ctx, r.IDs(), opts...)
}

// AreLoaded reports whether every id is Loaded.
func (r *Registry[T]) AreLoaded(ids ...string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		e, ok := r.entries[id]
		if !ok || e.status != StatusLoaded {
			return false
		}
	}
	return true
}

// Status returns the lifecycle state of id.
func (r *Registry[T]) Status(id string) Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return StatusUnregistered
	}
	return e.status
}

// IDs returns registered ids in registration order.
func (r *Registry[T]) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// List describes every registered segment in registration order.
func (r *Registry[T]) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.order))
	for _, id := range r.order {
		infos = append(infos, Info{ID: id, Status: r.entries[id].status})
	}
	return infos
}
