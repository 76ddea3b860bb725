package selector

// Props is the output of mappers and merge functions.
type Props = map[string]any

// MapFunc maps an input (state or actions) and the caller props to props.
type MapFunc func(input any, own Props) (Props, error)

// MergeFunc combines the mapped props with the caller props.
type MergeFunc func(stateProps, actionProps, own Props) (Props, error)

// Mapper is a MapFunc plus whether it reads the caller props.
// A mapper that does not depend on own props is not rerun when only the
// caller props change. The zero Mapper returns empty props.
type Mapper struct {
	Fn                MapFunc
	DependsOnOwnProps bool
}

// Map builds a mapper that reads only its input.
func Map(fn func(input any) (Props, error)) Mapper {
	if fn == nil {
		return Mapper{}
	}
	return Mapper{
		Fn: func(input any, _ Props) (Props, error) {
			return fn(input)
		},
	}
}

// MapWithProps builds a mapper that reads its input and the caller props.
func MapWithProps(fn MapFunc) Mapper {
	if fn == nil {
		return Mapper{}
	}
	return Mapper{Fn: fn, DependsOnOwnProps: true}
}

// DependsOn overrides the inferred own-props dependency.
func (m Mapper) DependsOn(dependsOnOwnProps bool) Mapper {
	m.DependsOnOwnProps = dependsOnOwnProps
	return m
}

func (m Mapper) call(input any, own Props) (Props, error) {
	if m.Fn == nil {
		return Props{}, nil
	}
	return m.Fn(input, own)
}

// DefaultMerge shallow-merges state props, then action props, then own props.
// Later keys win.
func DefaultMerge(stateProps, actionProps, own Props) (Props, error) {
	merged := make(Props, len(stateProps)+len(actionProps)+len(own))
	for _, src := range []Props{stateProps, actionProps, own} {
		for k, v := range src {
			merged[k] = v
		}
	}
	return merged, nil
}
