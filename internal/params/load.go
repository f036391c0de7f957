package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"strategy-validation-lab/internal/domain"
)

// spaceFile is the on-disk shape of a parameter space:
//
//	parameters:
//	  - name: signal.fast
//	    values: [5, 10]
//	  - name: symbol
//	    choice: [SPY, QQQ]
//	  - name: costs.commission_bps
//	    uniform: {low: 0, high: 10, step: 5}
//
// JSON documents with the same keys parse too.
type spaceFile struct {
	Parameters []parameterFile `yaml:"parameters" json:"parameters"`
}

type parameterFile struct {
	Name    string       `yaml:"name" json:"name"`
	Values  []any        `yaml:"values,omitempty" json:"values,omitempty"`
	Choice  []any        `yaml:"choice,omitempty" json:"choice,omitempty"`
	Uniform *uniformFile `yaml:"uniform,omitempty" json:"uniform,omitempty"`
}

type uniformFile struct {
	Low     float64 `yaml:"low" json:"low"`
	High    float64 `yaml:"high" json:"high"`
	Step    float64 `yaml:"step,omitempty" json:"step,omitempty"`
	Integer bool    `yaml:"integer,omitempty" json:"integer,omitempty"`
}

// LoadSpace reads and validates a parameter space document.
func LoadSpace(path string) (domain.ParameterSpace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ParameterSpace{}, fmt.Errorf("read space %s: %w", path, err)
	}
	return ParseSpace(data)
}

// ParseSpace decodes a YAML (or JSON) parameter space and validates it.
func ParseSpace(data []byte) (domain.ParameterSpace, error) {
	var f spaceFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return domain.ParameterSpace{}, fmt.Errorf("%w: parse space: %v", domain.ErrUsage, err)
	}

	space := domain.ParameterSpace{Parameters: make([]domain.Parameter, 0, len(f.Parameters))}
	for _, pf := range f.Parameters {
		p, err := pf.toParameter()
		if err != nil {
			return domain.ParameterSpace{}, err
		}
		space.Parameters = append(space.Parameters, p)
	}
	if err := Validate(space); err != nil {
		return domain.ParameterSpace{}, err
	}
	return space, nil
}

func (pf parameterFile) toParameter() (domain.Parameter, error) {
	set := 0
	if pf.Values != nil {
		set++
	}
	if pf.Choice != nil {
		set++
	}
	if pf.Uniform != nil {
		set++
	}
	if set != 1 {
		return domain.Parameter{}, fmt.Errorf("%w: %s: exactly one of values, choice, uniform is required",
			domain.ErrInvalidDistribution, pf.Name)
	}

	switch {
	case pf.Values != nil:
		return domain.Parameter{Name: pf.Name, Kind: domain.DistributionValues, Values: pf.Values}, nil
	case pf.Choice != nil:
		return domain.Parameter{Name: pf.Name, Kind: domain.DistributionChoice, Values: pf.Choice}, nil
	default:
		u := pf.Uniform
		return domain.Parameter{
			Name:    pf.Name,
			Kind:    domain.DistributionUniform,
			Low:     u.Low,
			High:    u.High,
			Step:    u.Step,
			Integer: u.Integer,
		}, nil
	}
}

// LoadTree reads a base strategy configuration.
func LoadTree(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config tree %s: %w", path, err)
	}
	return ParseTree(data)
}

// ParseTree decodes a YAML (or JSON) mapping into a Tree.
func ParseTree(data []byte) (Tree, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse config tree: %v", domain.ErrUsage, err)
	}
	if raw == nil {
		return Tree{}, nil
	}
	return Tree(raw).Clone(), nil
}
