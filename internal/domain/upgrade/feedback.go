package upgrade

import "slices"

// FeedbackCommand is a diagnostic command whose output goes into a feedback archive.
type FeedbackCommand struct {
	// Name is the archive entry the output is stored under.
	Name string
	// Command is the program and its arguments.
	Command []string
}

// Feedback lists what an upgrader wants collected when the user reports a problem.
type Feedback struct {
	// Upgrader is the name of the upgrader the feedback is for.
	Upgrader string
	// Version of the upgrader.
	Version string
	// IssuesURL is where the archive should be attached.
	IssuesURL string
	// Commands are run and their output archived.
	Commands []FeedbackCommand
	// Files are copied into the archive as is.
	Files []string
}

// AddCommand registers a diagnostic command.
func (f *Feedback) AddCommand(name string, command ...string) {
	f.Commands = append(f.Commands, FeedbackCommand{Name: name, Command: slices.Clone(command)})
}

// AddFile registers a file, ignoring duplicates.
func (f *Feedback) AddFile(path string) {
	if path == "" || slices.Contains(f.Files, path) {
		return
	}

	f.Files = append(f.Files, path)
}
