package actions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const myCnfContents = `# Plesk managed
[client]
port = 3306

[mysqld]
bind-address = ::ffff:127.0.0.1
local-infile=0

!includedir /etc/mysql/conf.d/
`

func mariadbChanges() map[string]MariaDBChange {
	return map[string]MariaDBChange{
		"mysqld.bind-address": {
			Prepare: ConfigValueReplacer{NewValue: Value("127.0.0.1"), OldValue: Value("::ffff:127.0.0.1")},
			Revert:  ConfigValueReplacer{NewValue: Value("::ffff:127.0.0.1"), OldValue: Value("127.0.0.1")},
		},
		"mysqld.innodb_fast_shutdown": {
			Prepare: ConfigValueReplacer{NewValue: Value("0"), OldValue: nil},
			Revert:  ConfigValueReplacer{NewValue: nil, OldValue: Value("0")},
		},
	}
}

// TestConfigureMariadb applies and reverts option changes while keeping the rest of the file.
func TestConfigureMariadb(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "my.cnf")
	require.NoError(t, os.WriteFile(path, []byte(myCnfContents), 0o644))

	a := NewConfigureMariadb(path, mariadbChanges())
	ctx := context.Background()

	require.True(t, a.IsRequired(ctx))
	require.NoError(t, a.Prepare(ctx))

	require.Equal(t, `# Plesk managed
[client]
port = 3306

[mysqld]
bind-address = 127.0.0.1
local-infile=0
innodb_fast_shutdown = 0

!includedir /etc/mysql/conf.d/
`, readFile(t, path))

	require.NoError(t, a.Revert(ctx))
	require.Equal(t, `# Plesk managed
[client]
port = 3306

[mysqld]
bind-address = ::ffff:127.0.0.1
local-infile=0

!includedir /etc/mysql/conf.d/
`, readFile(t, path))
}

// TestConfigValueReplacer_RespectsOldValue leaves options that were changed by the administrator.
func TestConfigValueReplacer_RespectsOldValue(t *testing.T) {
	t.Parallel()

	cnf := parseMyCnf("[mysqld]\nbind_address = 10.0.0.1\n")

	changed := ConfigValueReplacer{NewValue: Value("127.0.0.1"), OldValue: Value("::ffff:127.0.0.1")}.
		apply(cnf, "mysqld", "bind-address")
	require.False(t, changed)

	value, found := cnf.Get("mysqld", "bind-address")
	require.True(t, found)
	require.Equal(t, "10.0.0.1", value)

	// Missing section is created.
	cnf.Set("mariadb", "max_connections", "200")
	require.Equal(t, "[mysqld]\nbind_address = 10.0.0.1\n\n[mariadb]\nmax_connections = 200\n", cnf.String())
}

// TestConfigureMariadb_NotInstalled skips hosts without a MariaDB config.
func TestConfigureMariadb_NotInstalled(t *testing.T) {
	t.Parallel()

	a := NewConfigureMariadb(filepath.Join(t.TempDir(), "my.cnf"), mariadbChanges())
	require.False(t, a.IsRequired(context.Background()))

	bad := NewConfigureMariadb(filepath.Join(t.TempDir(), "my.cnf"), map[string]MariaDBChange{"nosection": {}})
	require.ErrorIs(t, bad.Prepare(context.Background()), errBadOptionKey)
}
