package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/logger"
)

// repositoryRewriter edits apt source files and keeps backups for revert.
type repositoryRewriter struct {
	paths   Paths
	include func(path string) bool
	rewrite func(contents string) string
}

// files lists the source files the rewriter manages, sorted.
func (r *repositoryRewriter) files() ([]string, error) {
	var candidates []string

	if r.paths.AptSourcesList != "" {
		candidates = append(candidates, r.paths.AptSourcesList)
	}

	if r.paths.AptSourcesDir != "" {
		for _, pattern := range []string{"*.list", "*.sources"} {
			matches, err := filepath.Glob(filepath.Join(r.paths.AptSourcesDir, pattern))
			if err != nil {
				return nil, fmt.Errorf("list apt sources: %w", err)
			}

			candidates = append(candidates, matches...)
		}
	}

	var result []string

	for _, path := range candidates {
		if exists(path) && r.include(path) {
			result = append(result, path)
		}
	}

	slices.Sort(result)

	return result, nil
}

// apply rewrites every managed file, saving a backup of each changed one.
func (r *repositoryRewriter) apply(ctx context.Context) error {
	files, err := r.files()
	if err != nil {
		return err
	}

	for _, path := range files {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		updated := r.rewrite(string(contents))
		if updated == string(contents) {
			continue
		}

		if err = backupFile(path); err != nil {
			return err
		}

		if err = writeKeepingMode(path, []byte(updated)); err != nil {
			return err
		}

		logger.InfoKV(ctx, "Repository file switched", "path", path)
	}

	return nil
}

// restore puts every backup back.
func (r *repositoryRewriter) restore() error {
	files, err := r.files()
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range files {
		errs = append(errs, restoreFile(path))
	}

	return errors.Join(errs...)
}

// cleanup drops every backup.
func (r *repositoryRewriter) cleanup() error {
	files, err := r.files()
	if err != nil {
		return err
	}

	var errs []error
	for _, path := range files {
		errs = append(errs, dropBackup(path))
	}

	return errors.Join(errs...)
}

// isPleskSource reports whether a source file belongs to Plesk.
func isPleskSource(path string) bool {
	return strings.HasPrefix(filepath.Base(path), "plesk")
}

// SetupDebianRepositories switches Debian repositories from one release codename to another.
type SetupDebianRepositories struct {
	action.Base

	rewriter *repositoryRewriter
}

// NewSetupDebianRepositories creates the action switching fromCodename to toCodename.
func NewSetupDebianRepositories(paths Paths, fromCodename, toCodename string) *SetupDebianRepositories {
	var (
		codename = regexp.MustCompile(`\b` + regexp.QuoteMeta(fromCodename) + `\b`)
		security = regexp.MustCompile(`\b` + regexp.QuoteMeta(fromCodename) + `/updates\b`)
	)

	rewrite := func(contents string) string {
		lines := strings.Split(contents, "\n")

		for i, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "#") {
				continue
			}

			line = security.ReplaceAllString(line, toCodename+"-security")
			line = codename.ReplaceAllString(line, toCodename)
			lines[i] = addNonFreeFirmware(line)
		}

		return strings.Join(lines, "\n")
	}

	return &SetupDebianRepositories{
		Base: action.Base{
			ActionName: fmt.Sprintf("set up %s repositories", toCodename),
			Estimate:   10 * time.Second,
		},
		rewriter: &repositoryRewriter{
			paths:   paths,
			include: func(path string) bool { return !isPleskSource(path) },
			rewrite: rewrite,
		},
	}
}

// nonFreeComponent matches a standalone non-free component.
var nonFreeComponent = regexp.MustCompile(`(^|\s)non-free(\s|$)`)

// addNonFreeFirmware adds the component the firmware packages moved to in bookworm.
func addNonFreeFirmware(line string) string {
	if !nonFreeComponent.MatchString(line) || strings.Contains(line, "non-free-firmware") {
		return line
	}

	trimmed := strings.TrimRight(line, " \t")

	return trimmed + " non-free-firmware"
}

// Prepare rewrites the source files.
func (a *SetupDebianRepositories) Prepare(ctx context.Context) error {
	return a.rewriter.apply(ctx)
}

// Finish drops the backups.
func (a *SetupDebianRepositories) Finish(context.Context) error {
	return a.rewriter.cleanup()
}

// Revert restores the original source files.
func (a *SetupDebianRepositories) Revert(context.Context) error {
	return a.rewriter.restore()
}

// SwitchPleskRepositories points Plesk repositories at builds for the new release.
type SwitchPleskRepositories struct {
	action.Base

	rewriter *repositoryRewriter
}

// NewSwitchPleskRepositories creates the action; Plesk repository URLs carry both the
// release codename and the "Debian-<version>" distribution tag.
func NewSwitchPleskRepositories(paths Paths, fromCodename, toCodename, fromVersion, toVersion string) *SwitchPleskRepositories {
	replacer := strings.NewReplacer(
		"Debian-"+fromVersion+".0", "Debian-"+toVersion+".0",
		"Debian-"+fromVersion, "Debian-"+toVersion,
	)
	codename := regexp.MustCompile(`\b` + regexp.QuoteMeta(fromCodename) + `\b`)

	return &SwitchPleskRepositories{
		Base: action.Base{
			ActionName: "switch Plesk repositories to Debian " + toVersion,
			Estimate:   10 * time.Second,
		},
		rewriter: &repositoryRewriter{
			paths:   paths,
			include: isPleskSource,
			rewrite: func(contents string) string {
				return codename.ReplaceAllString(replacer.Replace(contents), toCodename)
			},
		},
	}
}

// Prepare rewrites the Plesk source files.
func (a *SwitchPleskRepositories) Prepare(ctx context.Context) error {
	return a.rewriter.apply(ctx)
}

// Finish drops the backups.
func (a *SwitchPleskRepositories) Finish(context.Context) error {
	return a.rewriter.cleanup()
}

// Revert restores the original Plesk source files.
func (a *SwitchPleskRepositories) Revert(context.Context) error {
	return a.rewriter.restore()
}
