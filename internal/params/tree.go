// Package params resolves dot-addressed parameter paths against a strategy
// configuration tree and enumerates or samples parameter spaces.
package params

import (
	"fmt"
	"math"
	"strings"

	"strategy-validation-lab/internal/domain"
)

// Tree is a nested strategy configuration. Interior nodes are Trees; leaves are
// scalars (int, float64, string, bool) or lists.
type Tree map[string]any

// Clone returns a deep copy. Nested map[string]any nodes become Trees.
func (t Tree) Clone() Tree {
	out := make(Tree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case Tree:
		return x.Clone()
	case map[string]any:
		return Tree(x).Clone()
	case []any:
		cp := make([]any, len(x))
		for i, e := range x {
			cp[i] = cloneValue(e)
		}
		return cp
	default:
		return v
	}
}

func asTree(v any) (Tree, bool) {
	switch x := v.(type) {
	case Tree:
		return x, true
	case map[string]any:
		return Tree(x), true
	default:
		return nil, false
	}
}

// node walks to the parent of the leaf addressed by path.
func (t Tree) node(path string) (Tree, string, error) {
	if path == "" {
		return nil, "", fmt.Errorf("%w: empty path", domain.ErrUnresolvablePath)
	}
	parts := strings.Split(path, ".")
	cur := t
	for i, p := range parts[:len(parts)-1] {
		next, ok := cur[p]
		if !ok {
			return nil, "", fmt.Errorf("%w: %q (missing %q)", domain.ErrUnresolvablePath, path, strings.Join(parts[:i+1], "."))
		}
		sub, ok := asTree(next)
		if !ok {
			return nil, "", fmt.Errorf("%w: %q (%q is a leaf)", domain.ErrUnresolvablePath, path, strings.Join(parts[:i+1], "."))
		}
		cur = sub
	}
	return cur, parts[len(parts)-1], nil
}

// Get returns the leaf at path.
func (t Tree) Get(path string) (any, error) {
	parent, key, err := t.node(path)
	if err != nil {
		return nil, err
	}
	v, ok := parent[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnresolvablePath, path)
	}
	if _, isTree := asTree(v); isTree {
		return nil, fmt.Errorf("%w: %q is not a leaf", domain.ErrUnresolvablePath, path)
	}
	return v, nil
}

// Set overwrites an existing leaf. Paths that do not already resolve to a leaf
// are rejected so a typo cannot silently add a new key.
func (t Tree) Set(path string, value any) error {
	parent, key, err := t.node(path)
	if err != nil {
		return err
	}
	old, ok := parent[key]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnresolvablePath, path)
	}
	if _, isTree := asTree(old); isTree {
		return fmt.Errorf("%w: %q is not a leaf", domain.ErrUnresolvablePath, path)
	}
	parent[key] = value
	return nil
}

// Apply returns a copy of t with every assignment of c written in.
func (t Tree) Apply(c domain.Combination) (Tree, error) {
	out := t.Clone()
	for _, a := range c.Assignments() {
		if err := out.Set(a.Path, a.Value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Float reads a numeric leaf.
func (t Tree) Float(path string) (float64, error) {
	v, err := t.Get(path)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	default:
		return 0, fmt.Errorf("%s: expected number, got %T", path, v)
	}
}

// Int reads an integral leaf. Floats with a fractional part are rejected.
func (t Tree) Int(path string) (int, error) {
	f, err := t.Float(path)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%s: expected integer, got %v", path, f)
	}
	return int(f), nil
}

// String reads a string leaf.
func (t Tree) String(path string) (string, error) {
	v, err := t.Get(path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s: expected string, got %T", path, v)
	}
	return s, nil
}
