// Package scenario loads YAML descriptions of array mutations and replays
// them against a bound list, capturing the rendered HTML after every flush.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Step operations.
const (
	OpPush    = "push"
	OpPop     = "pop"
	OpShift   = "shift"
	OpUnshift = "unshift"
	OpSplice  = "splice"
	OpInsert  = "insert"
	OpRemove  = "remove"
	OpSet     = "set"
	OpReverse = "reverse"
	OpSort    = "sort"
	OpFlush   = "flush"
)

// Rendering engines.
const (
	EngineForEach = "foreach"
	EngineMapping = "mapping"
)

// Scenario describes a list, its template and the mutations applied to it.
type Scenario struct {
	// Name identifies the scenario in output and golden files.
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description,omitempty"`

	// Template is the markup placed in the document body. Its first element
	// is the bound container and that element's children are the item
	// template, e.g. <ul><li>{{.Data}}</li></ul>.
	Template string `yaml:"template" validate:"required"`

	// Items are the initial values. With Objects set every distinct name
	// becomes one shared *Item, so re-adding a name reuses its identity.
	Items   []string `yaml:"items"`
	Objects bool     `yaml:"objects"`

	// Deferred coalesces all mutations between flushes into one
	// notification. Sync applies every change immediately instead of once
	// per flush step.
	Deferred bool `yaml:"deferred"`
	Sync     bool `yaml:"sync"`

	// Engine selects the reconciler: foreach (default) or mapping.
	Engine string `yaml:"engine,omitempty" validate:"omitempty,oneof=foreach mapping"`

	Steps []Step `yaml:"steps" validate:"required,dive"`
}

// Step is one mutation of the array, or a flush.
type Step struct {
	Op     string   `yaml:"op" validate:"required,oneof=push pop shift unshift splice insert remove set reverse sort flush"`
	Index  int      `yaml:"index,omitempty" validate:"gte=0"`
	Count  int      `yaml:"count,omitempty" validate:"gte=0"`
	Values []string `yaml:"values,omitempty"`
}

var validate = validator.New()

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates scenario YAML. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if s.Engine == "" {
		s.Engine = EngineForEach
	}
	return &s, nil
}

// Validate checks field constraints and the arguments each op needs.
func (s *Scenario) Validate() error {
	if err := validate.Struct(s); err != nil {
		return validationError(err)
	}
	for i, step := range s.Steps {
		switch step.Op {
		case OpPush, OpUnshift, OpInsert, OpRemove:
			if len(step.Values) == 0 {
				return fmt.Errorf("steps[%d]: %s needs values", i, step.Op)
			}
		case OpPop, OpShift, OpReverse, OpSort, OpFlush:
			if len(step.Values) > 0 {
				return fmt.Errorf("steps[%d]: %s takes no values", i, step.Op)
			}
		}
	}
	return nil
}

// validationError flattens validator failures into one readable error.
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		field := strings.TrimPrefix(e.Namespace(), "Scenario.")
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", field, e.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
