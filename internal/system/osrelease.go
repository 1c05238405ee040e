package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"

	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
)

// DefaultOSReleasePath is the os-release file location on systemd hosts.
const DefaultOSReleasePath = "/etc/os-release"

var errNoOSName = errors.New("os-release does not define NAME")

// OSRelease holds the parsed variables of an os-release file.
type OSRelease map[string]string

// ReadOSRelease parses an os-release file. The format is a list of shell
// variable assignments, so it is parsed with a shell parser to handle quoting.
func ReadOSRelease(path string) (OSRelease, error) {
	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open os-release: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	parsed, err := syntax.NewParser().Parse(file, path)
	if err != nil {
		return nil, fmt.Errorf("parse os-release: %w", err)
	}

	release := make(OSRelease)

	for _, stmt := range parsed.Stmts {
		call, ok := stmt.Cmd.(*syntax.CallExpr)
		if !ok || len(call.Args) > 0 {
			continue
		}

		for _, assign := range call.Assigns {
			if assign.Name == nil {
				continue
			}

			value := ""

			if assign.Value != nil {
				value, err = expand.Literal(nil, assign.Value)
				if err != nil {
					return nil, fmt.Errorf("expand %s: %w", assign.Name.Value, err)
				}
			}

			release[assign.Name.Value] = value
		}
	}

	return release, nil
}

// System converts the release into a SystemDescription with the major version only.
func (r OSRelease) System() (domain.SystemDescription, error) {
	name := r["NAME"]
	if name == "" {
		return domain.SystemDescription{}, errNoOSName
	}

	// "Debian GNU/Linux" -> "Debian".
	name, _, _ = strings.Cut(name, " ")

	major, _, _ := strings.Cut(r["VERSION_ID"], ".")

	return domain.SystemDescription{
		OSName:    name,
		OSVersion: major,
	}, nil
}

// Codename returns VERSION_CODENAME, e.g. "bullseye".
func (r OSRelease) Codename() string {
	return r["VERSION_CODENAME"]
}

// DetectSystem reads the os-release file at path and describes the running system.
func DetectSystem(path string) (domain.SystemDescription, error) {
	if path == "" {
		path = DefaultOSReleasePath
	}

	release, err := ReadOSRelease(path)
	if err != nil {
		return domain.SystemDescription{}, err
	}

	return release.System()
}

// QuoteArgs renders arguments as a single shell-safe command line.
func QuoteArgs(args ...string) (string, error) {
	quoted := make([]string, 0, len(args))

	for _, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			return "", fmt.Errorf("quote %q: %w", arg, err)
		}

		quoted = append(quoted, q)
	}

	return strings.Join(quoted, " "), nil
}
