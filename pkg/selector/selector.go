package selector

import (
	"sync"

	"github.com/aretw0/tessera/pkg/adapters/memory"
	"github.com/aretw0/tessera/pkg/domain"
)

// Stage names reported in domain.ComputeError.
const (
	StageMapState   = "mapState"
	StageMapActions = "mapActions"
	StageMerge      = "merge"
)

// Selector memoizes derived props across Run calls.
type Selector struct {
	mu sync.Mutex

	isEqual    func(a, b any) bool
	mapState   Mapper
	mapActions Mapper
	merge      MergeFunc

	hasRun    bool
	destroyed bool
	update    bool
	err       error
	props     Props
	stage     string

	state       any
	actions     any
	own         Props
	stateProps  Props
	actionProps Props
	merged      Props
}

// New creates a Selector. A nil isEqual compares inputs with
// memory.ShallowEqual and a nil merge uses DefaultMerge.
func New(isEqual func(a, b any) bool, mapState, mapActions Mapper, merge MergeFunc) *Selector {
	if isEqual == nil {
		isEqual = memory.ShallowEqual
	}
	if merge == nil {
		merge = DefaultMerge
	}
	return &Selector{
		isEqual:    isEqual,
		mapState:   mapState,
		mapActions: mapActions,
		merge:      merge,
		update:     true,
		props:      Props{},
	}
}

// Run recomputes props for the given inputs and reports whether the caller
// should re-read them: true when the props changed or a failure occurred.
func (s *Selector) Run(state, actions any, own Props) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return false
	}

	next, err := s.compute(state, actions, own)
	if err != nil {
		s.err = err
		s.update = true
		return true
	}

	s.update = !domain.Same(next, s.props) || s.err != nil
	s.props = next
	s.err = nil
	return s.update
}

// ShouldUpdate returns the flag computed by the last Run.
func (s *Selector) ShouldUpdate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update
}

// Props returns the current merged props, or the failure captured by the
// last Run as a *domain.ComputeError.
func (s *Selector) Props() (Props, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	return s.props, nil
}

// Destroy drops all cached values. The selector stays inert afterwards.
func (s *Selector) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.destroyed = true
	s.mapState, s.mapActions = Mapper{}, Mapper{}
	s.merge = DefaultMerge
	s.hasRun, s.update, s.err = false, false, nil
	s.props = Props{}
	s.state, s.actions, s.own = nil, nil, nil
	s.stateProps, s.actionProps, s.merged = nil, nil, nil
}

func (s *Selector) compute(state, actions any, own Props) (next Props, err error) {
	s.stage = ""
	defer func() {
		if r := recover(); r != nil {
			err = domain.NewComputeError(s.stage, r)
		}
	}()

	if !s.hasRun {
		s.state, s.actions, s.own = state, actions, own
		if err := s.do(s.runMapState, s.runMapActions, s.runMerge); err != nil {
			return nil, err
		}
		s.hasRun = true
		return s.merged, nil
	}

	ownChanged := !s.isEqual(own, s.own)
	actionsChanged := !s.isEqual(actions, s.actions)
	stateChanged := !s.isEqual(state, s.state)

	s.state, s.actions, s.own = state, actions, own

	switch {
	case actionsChanged && stateChanged:
		err = s.do(s.runMapState, s.runMapActions, s.runMerge)
	case ownChanged && stateChanged:
		err = s.do(s.runMapState, s.ifOwnDependent(&s.mapActions, s.runMapActions), s.runMerge)
	case ownChanged && actionsChanged:
		err = s.do(s.runMapActions, s.ifOwnDependent(&s.mapState, s.runMapState), s.runMerge)
	case ownChanged:
		err = s.do(
			s.ifOwnDependent(&s.mapState, s.runMapState),
			s.ifOwnDependent(&s.mapActions, s.runMapActions),
			s.runMerge,
		)
	case actionsChanged:
		err = s.do(s.remapActions)
	case stateChanged:
		err = s.do(s.remapState)
	}
	if err != nil {
		return nil, err
	}
	return s.merged, nil
}

// do runs steps in order and stops at the first failure.
func (s *Selector) do(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return domain.NewComputeError(s.stage, err)
		}
	}
	return nil
}

func (s *Selector) ifOwnDependent(m *Mapper, step func() error) func() error {
	return func() error {
		if !m.DependsOnOwnProps {
			return nil
		}
		return step()
	}
}

func (s *Selector) runMapState() (err error) {
	s.stage = StageMapState
	s.stateProps, err = s.mapState.call(s.state, s.own)
	return err
}

func (s *Selector) runMapActions() (err error) {
	s.stage = StageMapActions
	s.actionProps, err = s.mapActions.call(s.actions, s.own)
	return err
}

func (s *Selector) runMerge() error {
	s.stage = StageMerge
	merged, err := s.merge(s.stateProps, s.actionProps, s.own)
	if err != nil {
		return err
	}
	s.merged = merged
	return nil
}

// remapState reruns mapState alone and remerges only when its output differs.
func (s *Selector) remapState() error {
	prev := s.stateProps
	if err := s.runMapState(); err != nil {
		return err
	}
	if s.isEqual(s.stateProps, prev) {
		return nil
	}
	return s.runMerge()
}

// remapActions is remapState for the actions input.
func (s *Selector) remapActions() error {
	prev := s.actionProps
	if err := s.runMapActions(); err != nil {
		return err
	}
	if s.isEqual(s.actionProps, prev) {
		return nil
	}
	return s.runMerge()
}
