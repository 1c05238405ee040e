package actions

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/plesk/debian11to12/internal/action"
	"github.com/plesk/debian11to12/internal/logger"
)

// ConfigValueReplacer changes an option only when it still holds the expected value.
// A nil OldValue expects the option to be absent; a nil NewValue removes it.
type ConfigValueReplacer struct {
	NewValue *string
	OldValue *string
}

// Value is a helper to build ConfigValueReplacer fields.
func Value(s string) *string {
	return &s
}

// apply runs the replacement and reports whether the file changed.
func (r ConfigValueReplacer) apply(cnf *myCnf, section, key string) bool {
	current, found := cnf.Get(section, key)

	switch {
	case r.OldValue == nil && found:
		return false
	case r.OldValue != nil && (!found || current != *r.OldValue):
		return false
	}

	if r.NewValue == nil {
		cnf.Delete(section, key)
	} else {
		cnf.Set(section, key, *r.NewValue)
	}

	return true
}

// MariaDBChange holds the replacements for one option in each direction.
type MariaDBChange struct {
	Prepare ConfigValueReplacer
	Revert  ConfigValueReplacer
}

var errBadOptionKey = errors.New(`option key must look like "section.option"`)

// ConfigureMariadb adjusts MariaDB options the server needs across the upgrade.
// Keys are "section.option", e.g. "mysqld.bind-address".
type ConfigureMariadb struct {
	action.Base

	configPath string
	changes    map[string]MariaDBChange
}

// NewConfigureMariadb creates the action for the option file at configPath.
func NewConfigureMariadb(configPath string, changes map[string]MariaDBChange) *ConfigureMariadb {
	return &ConfigureMariadb{
		Base:       action.Base{ActionName: "configure MariaDB"},
		configPath: configPath,
		changes:    maps.Clone(changes),
	}
}

// IsRequired reports whether MariaDB is configured on this host.
func (a *ConfigureMariadb) IsRequired(context.Context) bool {
	return exists(a.configPath)
}

// Prepare applies the prepare replacements.
func (a *ConfigureMariadb) Prepare(ctx context.Context) error {
	return a.apply(ctx, func(c MariaDBChange) ConfigValueReplacer { return c.Prepare })
}

// Revert applies the revert replacements.
func (a *ConfigureMariadb) Revert(ctx context.Context) error {
	return a.apply(ctx, func(c MariaDBChange) ConfigValueReplacer { return c.Revert })
}

func (a *ConfigureMariadb) apply(ctx context.Context, pick func(MariaDBChange) ConfigValueReplacer) error {
	contents, err := readOptional(a.configPath)
	if err != nil {
		return err
	}

	var (
		cnf     = parseMyCnf(contents)
		changed bool
	)

	for _, key := range slices.Sorted(maps.Keys(a.changes)) {
		section, option, ok := strings.Cut(key, ".")
		if !ok || section == "" || option == "" {
			return fmt.Errorf("%q: %w", key, errBadOptionKey)
		}

		if pick(a.changes[key]).apply(cnf, section, option) {
			logger.InfoKV(ctx, "MariaDB option changed", "option", key)

			changed = true
		}
	}

	if !changed {
		return nil
	}

	return writeKeepingMode(a.configPath, []byte(cnf.String()))
}
