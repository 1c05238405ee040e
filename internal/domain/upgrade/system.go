package upgrade

import "fmt"

// SystemDescription identifies an operating system release.
// Empty fields act as wildcards when matching.
type SystemDescription struct {
	// OSName is the distribution name, e.g. "Debian".
	OSName string
	// OSVersion is the major release, e.g. "11".
	OSVersion string
}

// Matches reports whether the description is compatible with the given release.
func (s SystemDescription) Matches(name, version string) bool {
	return (s.OSName == "" || s.OSName == name) &&
		(s.OSVersion == "" || s.OSVersion == version)
}

// String implements fmt.Stringer.
func (s SystemDescription) String() string {
	name, version := s.OSName, s.OSVersion
	if name == "" {
		name = "*"
	}

	if version == "" {
		version = "*"
	}

	return fmt.Sprintf("%s %s", name, version)
}
