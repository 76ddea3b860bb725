package tessera

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/tessera/internal/logging"
	"github.com/aretw0/tessera/pkg/actions"
	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/domain"
	"github.com/aretw0/tessera/pkg/ports"
	"github.com/aretw0/tessera/pkg/reducer"
	"github.com/aretw0/tessera/pkg/segment"
	"github.com/aretw0/tessera/pkg/store"
	"github.com/google/uuid"
)

// Config describes the initial contents of a Container.
type Config struct {
	// Adapter abstracts the state tree. Defaults to memory.New().
	Adapter ports.Adapter
	// Reducers are folded in order after deduplication, un-namespaced first.
	Reducers []reducer.Source
	// Actions are bound to the container once it is built.
	Actions []*actions.Definition
	// ReducerSet and ActionSet are keyed forms of Reducers and Actions.
	// Their entries follow the slices, in key order.
	ReducerSet map[string]reducer.Source
	ActionSet  map[string]*actions.Definition
	// State is the preloaded state. Unit initial states fill what it lacks.
	State any
	// Enhancer decorates creation of the underlying store.
	Enhancer store.Enhancer
}

// Container owns the state tree, the composite reducer, the actions tree
// and the segment registry.
type Container struct {
	id      string
	adapter ports.Adapter
	logger  *slog.Logger
	hooks   domain.LifecycleHooks
	locker  ports.DistributedLocker
	lockTTL time.Duration

	// foldMu serializes reducer rebuilds so they reach the store in order.
	// It is never held while listeners run.
	foldMu        sync.Mutex
	pendingNotify atomic.Bool

	mu         sync.RWMutex
	destroyed  bool
	store      *store.Store
	composite  domain.ReducerFunc // nil while no source is incorporated
	sources    []reducer.Source   // fold order
	defs       []*actions.Definition
	used       map[any]struct{}
	namespaces []string
	tree       *actions.Tree
	segments   *segment.Registry[*Container]
}

// New builds a Container. Sources are folded, the store is created with the
// initial action, and only then are dispatch bundles bound.
func New(cfg Config, opts ...Option) (*Container, error) {
	c := &Container{
		adapter: cfg.Adapter,
		used:    make(map[any]struct{}),
		lockTTL: segment.DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.adapter == nil {
		c.adapter = memory.New()
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.logger == nil {
		c.logger = logging.NewNop()
	}
	c.logger = c.logger.With("container_id", c.id)

	sources := c.freshSources(inKeyOrder(cfg.Reducers, cfg.ReducerSet))
	defs := c.freshDefinitions(inKeyOrder(cfg.Actions, cfg.ActionSet))

	state := seed(c.adapter, cfg.State, sources, true)
	c.composite = reducer.Compose(c.adapter, nil, sources...)
	c.sources = sources
	c.trackNamespaces(sources)

	c.store = store.New(c.adapter.WrapReducer(orIdentity(c.composite)), state, cfg.Enhancer)
	if c.store == nil {
		return nil, fmt.Errorf("store enhancer returned no store")
	}

	// Bundles are bound after the store exists; binding never calls back.
	c.defs = defs
	c.tree = actions.NewTree(c.bind(defs)...)

	c.segments = segment.NewRegistry(c.applySegment,
		segment.WithLogger(c.logger),
		segment.WithLifecycleHooks(c.hooks),
		segment.WithLocker(c.locker),
		segment.WithLockTTL(c.lockTTL),
		segment.WithContainerID(c.id),
		segment.WithSettled(c.settleSegment),
	)

	c.logger.Debug("Container created",
		"sources", len(sources),
		"definitions", len(defs),
	)
	return c, nil
}

// ID returns the container id.
func (c *Container) ID() string {
	return c.id
}

// Dispatch applies action through the composite reducer. Subscribers are
// notified when the state reference changed.
func (c *Container) Dispatch(action domain.Action) error {
	st, err := c.liveStore()
	if err != nil {
		return err
	}

	start := time.Now()
	changed := st.Dispatch(action)
	duration := time.Since(start)

	c.logger.Debug("Action dispatched",
		"action", action.Type,
		"changed", changed,
		"duration", duration,
	)
	if c.hooks.OnDispatch != nil {
		c.hooks.OnDispatch(context.Background(), &domain.DispatchEvent{
			EventBase: domain.EventBase{
				Timestamp:   time.Now(),
				Type:        domain.EventDispatch,
				ContainerID: c.id,
			},
			ActionType: action.Type,
			Changed:    changed,
			Duration:   duration,
		})
	}
	return nil
}

// Subscribe registers a listener called after every state change.
func (c *Container) Subscribe(listener func()) (func(), error) {
	st, err := c.liveStore()
	if err != nil {
		return nil, err
	}
	return st.Subscribe(listener), nil
}

// State returns the current state tree.
func (c *Container) State() (any, error) {
	st, err := c.liveStore()
	if err != nil {
		return nil, err
	}
	return st.GetState(), nil
}

// Actions returns the actions tree. The tree is replaced when segments add
// bundles, so a previously returned tree stays as it was.
func (c *Container) Actions() (*actions.Tree, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.destroyed {
		return nil, domain.ErrDestroyed
	}
	return c.tree, nil
}

// IsEqual returns the adapter's equality predicate.
func (c *Container) IsEqual() (func(a, b any) bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.destroyed {
		return nil, domain.ErrDestroyed
	}
	return c.adapter.IsEqual, nil
}

// Namespaces lists the namespaces of incorporated units, in fold order.
func (c *Container) Namespaces() ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.destroyed {
		return nil, domain.ErrDestroyed
	}
	return slices.Clone(c.namespaces), nil
}

// Diff reports which namespace slices differ between two states.
// It returns nil when prev and next are the same tree.
func (c *Container) Diff(prev, next any) (*domain.StateDiff, error) {
	namespaces, err := c.Namespaces()
	if err != nil {
		return nil, err
	}
	return domain.Diff(c.adapter, prev, next, namespaces), nil
}

// AddSegment incorporates reducer sources and action definitions.
// Already incorporated values are skipped, so adding the same unit twice
// leaves the reducer and the actions tree untouched. Listeners run after
// the rebuild finished, so they may add or load segments themselves.
func (c *Container) AddSegment(cfg segment.Config) (*Container, error) {
	st, changed, err := c.addSegment(cfg)
	if err != nil {
		return nil, err
	}
	if changed {
		st.Notify()
	}
	return c, nil
}

// addSegment rebuilds the reducer without notifying listeners. It reports
// whether seeding the new namespaces changed the state.
func (c *Container) addSegment(cfg segment.Config) (*store.Store, bool, error) {
	c.foldMu.Lock()
	defer c.foldMu.Unlock()

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil, false, domain.ErrDestroyed
	}

	sources := c.freshSources(inKeyOrder(cfg.Reducers, cfg.ReducerSet))
	defs := c.freshDefinitions(inKeyOrder(cfg.Actions, cfg.ActionSet))
	st := c.store
	if len(sources) == 0 && len(defs) == 0 {
		c.mu.Unlock()
		return st, false, nil
	}

	if len(defs) > 0 {
		c.defs = append(c.defs, defs...)
		c.tree = c.tree.With(c.bind(defs)...)
	}

	var next domain.ReducerFunc
	if len(sources) > 0 {
		c.composite = reducer.Compose(c.adapter, c.composite, sources...)
		c.sources = append(c.sources, sources...)
		c.trackNamespaces(sources)
		next = c.adapter.WrapReducer(seedOnReplace(c.adapter, sources, c.composite))
	}
	c.mu.Unlock()

	changed := false
	if next != nil {
		changed = st.SwapReducer(next)
	}

	c.logger.Debug("Segment added",
		"sources", len(sources),
		"definitions", len(defs),
	)
	return st, changed, nil
}

// RegisterSegment registers a lazily loaded segment under id.
func (c *Container) RegisterSegment(id string, loader segment.Loader, onLoaded segment.OnLoaded[*Container]) (*Container, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if err := c.segments.Register(id, loader, onLoaded); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadSegment loads the segment id once. Concurrent calls share the load.
func (c *Container) LoadSegment(ctx context.Context, id string, opts ...segment.LoadOption) (*Container, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if err := c.segments.Load(ctx, id, opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadSegments loads ids concurrently and returns when all are done.
func (c *Container) LoadSegments(ctx context.Context, ids []string, opts ...segment.LoadOption) (*Container, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if err := c.segments.LoadMany(ctx, ids, opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadAllSegments loads every registered segment.
func (c *Container) LoadAllSegments(ctx context.Context, opts ...segment.LoadOption) (*Container, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	if err := c.segments.LoadAll(ctx, opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// AreSegmentsLoaded reports whether every id is loaded.
func (c *Container) AreSegmentsLoaded(ids ...string) (bool, error) {
	if err := c.alive(); err != nil {
		return false, err
	}
	return c.segments.AreLoaded(ids...), nil
}

// Segments lists registered segments with their status.
func (c *Container) Segments() ([]segment.Info, error) {
	if err := c.alive(); err != nil {
		return nil, err
	}
	return c.segments.List(), nil
}

// Reset rebuilds the composite reducer and the actions tree from every
// incorporated source and definition, then replaces the store reducer.
// State is kept; namespaces missing from it get their initial state.
func (c *Container) Reset() error {
	c.foldMu.Lock()
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		c.foldMu.Unlock()
		return domain.ErrDestroyed
	}
	c.composite = reducer.Compose(c.adapter, nil, c.sources...)
	c.tree = actions.NewTree(c.bind(c.defs)...)
	next := c.adapter.WrapReducer(seedOnReplace(c.adapter, c.sources, orIdentity(c.composite)))
	st, n := c.store, len(c.sources)
	c.mu.Unlock()

	changed := st.SwapReducer(next)
	c.foldMu.Unlock()

	c.logger.Debug("Container reset", "sources", n)
	if changed {
		st.Notify()
	}
	return nil
}

// Destroy makes the container unusable. It is idempotent. Loads already in
// flight still finish, but their segment is discarded.
func (c *Container) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.destroyed {
		return
	}
	c.destroyed = true
	c.store = nil
	c.tree = nil
	c.composite = nil
	c.logger.Debug("Container destroyed")
}

// applySegment is the registry's apply step. The listener notification is
// held back until the segment is marked Loaded (see settleSegment), so a
// listener loading the same segment returns at once instead of waiting on
// the load that notified it.
func (c *Container) applySegment(cfg segment.Config) (*Container, error) {
	_, changed, err := c.addSegment(cfg)
	if err != nil {
		return nil, err
	}
	if changed {
		c.pendingNotify.Store(true)
	}
	return c, nil
}

func (c *Container) settleSegment(string) {
	if !c.pendingNotify.Swap(false) {
		return
	}
	if st, err := c.liveStore(); err == nil {
		st.Notify()
	}
}

func (c *Container) alive() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.destroyed {
		return domain.ErrDestroyed
	}
	return nil
}

func (c *Container) liveStore() (*store.Store, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.destroyed {
		return nil, domain.ErrDestroyed
	}
	return c.store, nil
}

func (c *Container) bind(defs []*actions.Definition) []*actions.Bundle {
	bundles := make([]*actions.Bundle, 0, len(defs))
	for _, d := range defs {
		bundles = append(bundles, d.Bind(c, c.adapter))
	}
	return bundles
}

// inKeyOrder appends the values of set to list, sorted by key.
func inKeyOrder[T any](list []T, set map[string]T) []T {
	if len(set) == 0 {
		return list
	}
	out := slices.Clone(list)
	for _, key := range slices.Sorted(maps.Keys(set)) {
		out = append(out, set[key])
	}
	return out
}

// freshSources drops nil and already incorporated sources, marks the rest
// as used and sorts them. Callers hold c.mu or own c exclusively.
func (c *Container) freshSources(in []reducer.Source) []reducer.Source {
	var out []reducer.Source
	for _, s := range in {
		if s == nil {
			continue
		}
		if _, ok := c.used[s]; ok {
			continue
		}
		c.used[s] = struct{}{}
		out = append(out, s)
	}
	return reducer.SortSources(out)
}

func (c *Container) freshDefinitions(in []*actions.Definition) []*actions.Definition {
	var out []*actions.Definition
	for _, d := range in {
		if d == nil {
			continue
		}
		if _, ok := c.used[d]; ok {
			continue
		}
		c.used[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

func (c *Container) trackNamespaces(sources []reducer.Source) {
	for _, s := range sources {
		if ns := s.Namespace(); ns != "" && !slices.Contains(c.namespaces, ns) {
			c.namespaces = append(c.namespaces, ns)
		}
	}
}

type initialStater interface {
	InitialState() any
}

// seed fills state with the initial state of sources. A namespaced unit
// sets its slice when the adapter reports it absent. An un-namespaced unit
// provides the whole tree only when there is none yet.
func seed(adapter ports.Adapter, state any, sources []reducer.Source, allowRoot bool) any {
	for _, s := range sources {
		u, ok := s.(initialStater)
		if !ok {
			continue
		}
		initial := u.InitialState()

		if ns := s.Namespace(); ns != "" {
			if state == nil {
				state = adapter.DefaultState()
			}
			if initial != nil && !adapter.Has(state, ns) {
				state = adapter.Set(state, ns, initial)
			}
			continue
		}
		if allowRoot && state == nil && initial != nil {
			state = initial
		}
	}
	return state
}

// seedOnReplace seeds the slices of late sources when the store dispatches
// domain.ActionReplace, then runs next.
func seedOnReplace(adapter ports.Adapter, sources []reducer.Source, next domain.ReducerFunc) domain.ReducerFunc {
	return func(state any, action domain.Action) any {
		if action.Type == domain.ActionReplace {
			state = seed(adapter, state, sources, false)
		}
		return next(state, action)
	}
}

func orIdentity(fn domain.ReducerFunc) domain.ReducerFunc {
	if fn == nil {
		return reducer.Identity
	}
	return fn
}

var _ actions.Host = (*Container)(nil)
