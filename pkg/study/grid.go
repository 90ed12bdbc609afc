package study

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/pkg/errors"
)

const (
	selectorTypeRangeFloat = "rangeFloat"
	selectorTypeRangeInt   = "rangeInt"
	selectorTypeString     = "string"
	selectorTypeBool       = "bool"
)

// Selector describes one swept dimension of a study grid. Path is a
// JSON pointer into the study configuration.
type Selector struct {
	Type   string   `json:"type" yaml:"type"`
	Label  string   `json:"label,omitempty" yaml:"label,omitempty"`
	Path   string   `json:"path" yaml:"path"`
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
	Min    float64  `json:"min,omitempty" yaml:"min,omitempty"`
	Max    float64  `json:"max,omitempty" yaml:"max,omitempty"`
	Step   float64  `json:"step,omitempty" yaml:"step,omitempty"`
}

func (s Selector) label() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Path
}

// values renders the swept literals as JSON value tokens.
func (s Selector) values() ([]string, error) {
	switch s.Type {
	case selectorTypeRangeFloat, "range":
		step := s.Step
		if step == 0 {
			step = 1
		}
		// step by index so accumulated float error cannot skew the
		// grid or its labels
		n := int(math.Floor((s.Max-s.Min)/step+1e-9)) + 1
		var out []string
		for i := 0; i < n; i++ {
			out = append(out, fmt.Sprintf("%.12g", s.Min+step*float64(i)))
		}
		return out, nil

	case selectorTypeRangeInt:
		step := int64(s.Step)
		if step == 0 {
			step = 1
		}
		var out []string
		for v := int64(s.Min); v <= int64(s.Max); v += step {
			out = append(out, fmt.Sprintf("%d", v))
		}
		return out, nil

	case selectorTypeString, "iterate":
		var out []string
		for _, v := range s.Values {
			out = append(out, fmt.Sprintf("%q", v))
		}
		return out, nil

	case selectorTypeBool:
		return []string{"false", "true"}, nil
	}
	return nil, errors.Errorf("study: unknown selector type %q", s.Type)
}

// Variant is one cell of the enumerated grid: the patched
// configuration plus the swept values that produced it, keyed by
// selector label.
type Variant struct {
	Config *Config
	Params map[string]string
}

// Enumerate expands the selector matrix over the base configuration
// by applying one JSON patch per swept value, cartesian across
// selectors. The base is never mutated. With an empty matrix the base
// itself is the single variant.
func Enumerate(base *Config, matrix []Selector) ([]Variant, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, errors.Wrap(err, "study: encoding base config")
	}

	var variants []Variant
	var walk func(doc []byte, dim int, params map[string]string) error
	walk = func(doc []byte, dim int, params map[string]string) error {
		if dim == len(matrix) {
			var cfg Config
			if err := json.Unmarshal(doc, &cfg); err != nil {
				return errors.Wrap(err, "study: decoding patched config")
			}
			if err := cfg.Validate(); err != nil {
				return errors.Wrapf(err, "study: variant %v", params)
			}
			variants = append(variants, Variant{Config: &cfg, Params: params})
			return nil
		}

		sel := matrix[dim]
		values, err := sel.values()
		if err != nil {
			return err
		}
		for _, value := range values {
			op := []byte(fmt.Sprintf(`[{"op": "replace", "path": "%s", "value": %s}]`, sel.Path, value))
			patch, err := jsonpatch.DecodePatch(op)
			if err != nil {
				return errors.Wrapf(err, "study: building patch for %s", sel.Path)
			}
			patched, err := patch.Apply(doc)
			if err != nil {
				return errors.Wrapf(err, "study: applying %s", op)
			}

			next := make(map[string]string, len(params)+1)
			for k, v := range params {
				next[k] = v
			}
			next[sel.label()] = strings.Trim(value, `"`)

			if err := walk(patched, dim+1, next); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(baseJSON, 0, map[string]string{}); err != nil {
		return nil, err
	}
	return variants, nil
}
