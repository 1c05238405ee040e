package action

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Stage is a named group of actions executed together.
type Stage struct {
	// Name is shown to the user in plans and progress.
	Name string `yaml:"name"`
	// Actions run in order.
	Actions []Action `yaml:"-"`
}

// Plan is the ordered list of stages an upgrader performs.
type Plan []Stage

var (
	errEmptyPlan       = errors.New("plan has no stages")
	errEmptyStageName  = errors.New("stage name is empty")
	errEmptyActionName = errors.New("action name is empty")
	errDuplicateAction = errors.New("duplicate action name")
)

// Validate checks that stages are named and action names are unique.
func (p Plan) Validate() error {
	if len(p) == 0 {
		return errEmptyPlan
	}

	seen := make(map[string]struct{})

	for i, stage := range p {
		if strings.TrimSpace(stage.Name) == "" {
			return fmt.Errorf("stage %d: %w", i, errEmptyStageName)
		}

		for _, a := range stage.Actions {
			name := a.Name()
			if name == "" {
				return fmt.Errorf("stage %q: %w", stage.Name, errEmptyActionName)
			}

			if _, found := seen[name]; found {
				return fmt.Errorf("stage %q, action %q: %w", stage.Name, name, errDuplicateAction)
			}

			seen[name] = struct{}{}
		}
	}

	return nil
}

// Actions returns every action of the plan in execution order.
func (p Plan) Actions() []Action {
	var result []Action
	for _, stage := range p {
		result = append(result, stage.Actions...)
	}

	return result
}

// EstimateTotal sums the Prepare estimates of every action.
func (p Plan) EstimateTotal() time.Duration {
	var total time.Duration
	for _, a := range p.Actions() {
		total += a.EstimatePrepareTime()
	}

	return total
}

// StagePlan is the printable form of one stage.
type StagePlan struct {
	Name     string   `yaml:"stage"`
	Actions  []string `yaml:"actions"`
	Estimate string   `yaml:"estimate"`
}

// Describe renders the plan into printable stages.
func (p Plan) Describe() []StagePlan {
	result := make([]StagePlan, 0, len(p))

	for _, stage := range p {
		var (
			names    = make([]string, 0, len(stage.Actions))
			estimate time.Duration
		)

		for _, a := range stage.Actions {
			names = append(names, a.Name())
			estimate += a.EstimatePrepareTime()
		}

		result = append(result, StagePlan{
			Name:     stage.Name,
			Actions:  names,
			Estimate: estimate.String(),
		})
	}

	return result
}
