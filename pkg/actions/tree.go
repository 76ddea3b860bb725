package actions

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/tessera/pkg/domain"
)

// Tree is the container-wide set of bundles. It is replaced, never
// modified, when segments add bundles, so a changed Tree is a new pointer.
type Tree struct {
	root       *Bundle
	namespaces map[string]*Bundle
}

// NewTree builds a tree from bundles.
func NewTree(bundles ...*Bundle) *Tree {
	return (&Tree{
		root:       &Bundle{methods: map[string]*Method{}, base: map[string]*Method{}},
		namespaces: map[string]*Bundle{},
	}).With(bundles...)
}

// With returns a new tree with bundles merged in. Namespaced bundles replace
// any bundle under the same namespace; un-namespaced methods are merged at
// the root, later names winning.
func (t *Tree) With(bundles ...*Bundle) *Tree {
	next := &Tree{
		root:       t.root,
		namespaces: maps.Clone(t.namespaces),
	}

	for _, b := range bundles {
		if b.namespace != "" {
			next.namespaces[b.namespace] = b
			continue
		}
		if next.root == t.root {
			next.root = &Bundle{
				host:    b.host,
				adapter: b.adapter,
				methods: maps.Clone(t.root.methods),
				base:    maps.Clone(t.root.base),
			}
		}
		if next.root.host == nil {
			next.root.host, next.root.adapter = b.host, b.adapter
		}
		maps.Copy(next.root.methods, b.methods)
		maps.Copy(next.root.base, b.base)
	}
	return next
}

// Root returns the bundle holding every un-namespaced method.
func (t *Tree) Root() *Bundle {
	return t.root
}

// Namespace returns the bundle nested under ns.
func (t *Tree) Namespace(ns string) (*Bundle, bool) {
	b, ok := t.namespaces[ns]
	return b, ok
}

// Namespaces returns the sorted namespaces holding a bundle.
func (t *Tree) Namespaces() []string {
	return slices.Sorted(maps.Keys(t.namespaces))
}

// Method resolves "namespace.method" or a root "method".
func (t *Tree) Method(path string) (*Method, bool) {
	if i := strings.LastIndex(path, "."); i >= 0 {
		b, ok := t.namespaces[path[:i]]
		if !ok {
			return nil, false
		}
		return b.Method(path[i+1:])
	}
	return t.root.Method(path)
}

// Call resolves path and invokes the method.
func (t *Tree) Call(ctx context.Context, path string, payload, meta any) (any, error) {
	m, ok := t.Method(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, path)
	}
	return m.Call(ctx, payload, meta)
}
