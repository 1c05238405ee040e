package actions

import (
	"strings"
)

// myCnf is a line-preserving editor for MySQL/MariaDB option files.
// Comments, include directives and formatting of untouched lines survive edits.
type myCnf struct {
	lines []string
}

func parseMyCnf(contents string) *myCnf {
	contents = strings.TrimSuffix(contents, "\n")
	if contents == "" {
		return &myCnf{}
	}

	return &myCnf{lines: strings.Split(contents, "\n")}
}

// String renders the file with a trailing newline.
func (c *myCnf) String() string {
	if len(c.lines) == 0 {
		return ""
	}

	return strings.Join(c.lines, "\n") + "\n"
}

// sectionOf returns the section name if line is a section header.
func sectionOf(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "[") || !strings.HasSuffix(trimmed, "]") {
		return "", false
	}

	return strings.TrimSpace(trimmed[1 : len(trimmed)-1]), true
}

// normalizeOption treats dashes and underscores in option names as equal, like the server does.
func normalizeOption(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

// optionOf splits an option line into name and value.
func optionOf(line string) (string, string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, ";") ||
		strings.HasPrefix(trimmed, "!") || strings.HasPrefix(trimmed, "[") {
		return "", "", false
	}

	name, value, _ := strings.Cut(trimmed, "=")

	return strings.TrimSpace(name), strings.Trim(strings.TrimSpace(value), `"'`), true
}

// find returns the line index of section.key and the index of the last option
// (or the header) of the section.
func (c *myCnf) find(section, key string) (int, int) {
	var (
		current    string
		found      = -1
		sectionEnd = -1
		wantKey    = normalizeOption(key)
	)

	for i, line := range c.lines {
		if name, ok := sectionOf(line); ok {
			current = name
			if current == section {
				sectionEnd = i
			}

			continue
		}

		if current != section {
			continue
		}

		name, _, ok := optionOf(line)
		if !ok {
			continue
		}

		sectionEnd = i

		if normalizeOption(name) == wantKey {
			found = i
		}
	}

	return found, sectionEnd
}

// Get returns the value of section.key.
func (c *myCnf) Get(section, key string) (string, bool) {
	index, _ := c.find(section, key)
	if index < 0 {
		return "", false
	}

	_, value, _ := optionOf(c.lines[index])

	return value, true
}

// Set assigns section.key, appending the option (and the section) when missing.
func (c *myCnf) Set(section, key, value string) {
	line := key + " = " + value

	index, sectionEnd := c.find(section, key)

	switch {
	case index >= 0:
		c.lines[index] = line
	case sectionEnd >= 0:
		c.lines = append(c.lines[:sectionEnd+1], append([]string{line}, c.lines[sectionEnd+1:]...)...)
	default:
		if len(c.lines) > 0 {
			c.lines = append(c.lines, "")
		}

		c.lines = append(c.lines, "["+section+"]", line)
	}
}

// Delete removes section.key.
func (c *myCnf) Delete(section, key string) {
	index, _ := c.find(section, key)
	if index < 0 {
		return
	}

	c.lines = append(c.lines[:index], c.lines[index+1:]...)
}
