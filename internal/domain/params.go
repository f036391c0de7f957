package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Distribution describes how a parameter's candidates are produced.
type Distribution string

// Distribution kinds.
const (
	DistributionValues  Distribution = "values"  // explicit ordered list
	DistributionChoice  Distribution = "choice"  // discrete set, uniform draw
	DistributionUniform Distribution = "uniform" // numeric range, uniform draw
)

// Parameter is one tunable entry of a ParameterSpace.
// Name is a dot-separated path into the strategy configuration.
type Parameter struct {
	Name    string
	Kind    Distribution
	Values  []any   // values / choice
	Low     float64 // uniform
	High    float64 // uniform
	Step    float64 // uniform; >0 makes the range enumerable for grid search
	Integer bool    // uniform; draw integers in [Low, High]
}

// ParameterSpace is an ordered set of parameters. Order defines grid enumeration:
// the first parameter varies slowest.
type ParameterSpace struct {
	Parameters []Parameter
}

// Names returns the parameter paths in declaration order.
func (s ParameterSpace) Names() []string {
	names := make([]string, len(s.Parameters))
	for i, p := range s.Parameters {
		names[i] = p.Name
	}
	return names
}

// Assignment binds one parameter path to a concrete value.
type Assignment struct {
	Path  string
	Value any
}

// Combination is an immutable, ordered mapping from parameter path to value.
type Combination struct {
	assignments []Assignment
}

// NewCombination copies the given assignments into a new Combination.
func NewCombination(assignments ...Assignment) Combination {
	cp := make([]Assignment, len(assignments))
	copy(cp, assignments)
	return Combination{assignments: cp}
}

// Assignments returns a copy of the ordered assignments.
func (c Combination) Assignments() []Assignment {
	cp := make([]Assignment, len(c.assignments))
	copy(cp, c.assignments)
	return cp
}

// Len returns the number of assignments.
func (c Combination) Len() int {
	return len(c.assignments)
}

// Get returns the value bound to path.
func (c Combination) Get(path string) (any, bool) {
	for _, a := range c.assignments {
		if a.Path == path {
			return a.Value, true
		}
	}
	return nil, false
}

// Key renders the combination as "path=value,path=value" in declaration order.
func (c Combination) Key() string {
	if len(c.assignments) == 0 {
		return "{}"
	}
	parts := make([]string, len(c.assignments))
	for i, a := range c.assignments {
		parts[i] = a.Path + "=" + FormatValue(a.Value)
	}
	return strings.Join(parts, ",")
}

func (c Combination) String() string {
	return c.Key()
}

// FormatValue renders a parameter value compactly.
func FormatValue(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// MarshalJSON encodes the combination as a JSON object preserving assignment order.
func (c Combination) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range c.assignments {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a.Path)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", a.Path, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping key order. Integral numbers become int.
func (c *Combination) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("combination: expected object")
	}

	var out []Assignment
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("combination: expected string key")
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("combination %s: %w", key, err)
		}
		out = append(out, Assignment{Path: key, Value: normalizeNumber(raw)})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	c.assignments = out
	return nil
}

func normalizeNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := strconv.Atoi(n.String()); err == nil {
		return i
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}
	return f
}
