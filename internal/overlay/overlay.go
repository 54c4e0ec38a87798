// Package overlay derives per-run configuration trees from a base tree and
// writes them out as standalone files.
package overlay

import (
	"errors"
	"fmt"
	"strings"
)

// ErrStructureMismatch is returned when an override does not line up with the
// base tree: a key is missing from the base, or one side holds a nested tree
// where the other holds a leaf.
var ErrStructureMismatch = errors.New("override does not match base configuration")

// Tree is a configuration tree. Values are nested Trees or leaves
// (scalars, lists, nil).
type Tree = map[string]any

// Materialize returns a copy of base with every leaf named in override
// replaced. base is never modified; the result shares no maps with it.
func Materialize(base, override Tree) (Tree, error) {
	out := Clone(base)
	if err := apply(out, override, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func apply(dst, override Tree, path []string) error {
	for key, value := range override {
		p := append(path[:len(path):len(path)], key)
		current, ok := dst[key]
		if !ok {
			return fmt.Errorf("%w: key %q not present in base", ErrStructureMismatch, joinPath(p))
		}
		sub, overrideIsTree := asTree(value)
		dstSub, baseIsTree := asTree(current)
		switch {
		case overrideIsTree && baseIsTree:
			if err := apply(dstSub, sub, p); err != nil {
				return err
			}
		case overrideIsTree:
			return fmt.Errorf("%w: %q is a value in base but a section in override", ErrStructureMismatch, joinPath(p))
		case baseIsTree:
			return fmt.Errorf("%w: %q is a section in base but a value in override", ErrStructureMismatch, joinPath(p))
		default:
			dst[key] = cloneValue(value)
		}
	}
	return nil
}

// Clone deep-copies a tree. Nested trees and lists are copied; scalars are shared.
func Clone(t Tree) Tree {
	if t == nil {
		return Tree{}
	}
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return Clone(x)
	case map[any]any:
		return Clone(Normalize(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func asTree(v any) (Tree, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case map[any]any:
		return Normalize(x), true
	default:
		return nil, false
	}
}

// Normalize converts a map with non-string keys, as produced by YAML for
// integer or boolean keys, into a Tree. Nested maps are converted too.
func Normalize(m map[any]any) Tree {
	out := make(Tree, len(m))
	for k, v := range m {
		out[fmt.Sprint(k)] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case map[any]any:
		return Normalize(x)
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeValue(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalizeValue(e)
		}
		return x
	default:
		return v
	}
}

func joinPath(p []string) string { return strings.Join(p, ".") }
