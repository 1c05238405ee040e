package distupgrade

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	repository "github.com/plesk/debian11to12/internal/repository/progress"
)

// planDocument is the printable plan.
type planDocument struct {
	Upgrader string             `yaml:"upgrader"`
	Version  string             `yaml:"version"`
	Estimate string             `yaml:"estimate"`
	Stages   []action.StagePlan `yaml:"stages"`
}

// showPlan prints the upgrader description and its stages as YAML.
func (e *Engine) showPlan(ctx context.Context, cfg *config.Config, opts *Options, repo repository.Repository) error {
	progress, err := loadProgress(ctx, repo)
	if err != nil {
		return err
	}

	upgrader, err := e.selectUpgrader(ctx, progress)
	if err != nil {
		return err
	}

	upgraderOpts, err := e.upgraderOptions(cfg, opts)
	if err != nil {
		return err
	}

	plan, err := upgrader.ConstructActions(upgraderOpts, domain.PhaseConvert)
	if err != nil {
		return fmt.Errorf("construct actions: %w", err)
	}

	document := planDocument{
		Upgrader: upgrader.Name(),
		Version:  upgrader.Version(),
		Estimate: plan.EstimateTotal().String(),
		Stages:   plan.Describe(),
	}

	data, err := yaml.Marshal(document)
	if err != nil {
		return fmt.Errorf("render plan: %w", err)
	}

	_, err = fmt.Fprintf(e.Output, "%s\n%s", upgrader.Description(), data)

	return err
}
