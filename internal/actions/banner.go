package actions

import (
	"context"
	"fmt"
	"os"

	"github.com/plesk/debian11to12/internal/action"
)

// DisablePleskSSHBanner hides the Plesk SSH banner so it does not compete with
// the upgrade login messages.
type DisablePleskSSHBanner struct {
	action.Base

	bannerPath string
}

// NewDisablePleskSSHBanner creates the action for the banner switch file.
func NewDisablePleskSSHBanner(bannerPath string) *DisablePleskSSHBanner {
	return &DisablePleskSSHBanner{
		Base:       action.Base{ActionName: "disable Plesk SSH banner"},
		bannerPath: bannerPath,
	}
}

// IsRequired reports whether the banner is enabled or was disabled by a previous run.
func (a *DisablePleskSSHBanner) IsRequired(context.Context) bool {
	return exists(a.bannerPath) || exists(a.bannerPath+backupSuffix)
}

// Prepare moves the banner switch file aside.
func (a *DisablePleskSSHBanner) Prepare(context.Context) error {
	if !exists(a.bannerPath) {
		return nil
	}

	if err := os.Rename(a.bannerPath, a.bannerPath+backupSuffix); err != nil {
		return fmt.Errorf("disable banner: %w", err)
	}

	return nil
}

// Finish restores the banner.
func (a *DisablePleskSSHBanner) Finish(context.Context) error {
	return restoreFile(a.bannerPath)
}

// Revert restores the banner.
func (a *DisablePleskSSHBanner) Revert(context.Context) error {
	return restoreFile(a.bannerPath)
}
