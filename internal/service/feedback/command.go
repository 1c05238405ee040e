package feedback

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	"github.com/plesk/debian11to12/internal/logger"
	"github.com/plesk/debian11to12/internal/system"
)

// Options controls what goes into the feedback archive.
type Options struct {
	// Dir is where the archive is written.
	Dir string
	// Feedback lists commands and files to collect.
	Feedback *domain.Feedback
	// Runner executes the diagnostic commands.
	Runner system.Runner
	// Now is used for the archive name; defaults to time.Now.
	Now func() time.Time
}

const (
	archivePrefix = "debian11to12_feedback_"
	archiveSuffix = ".tar.xz"

	// entryPermissions is the mode of every archived entry.
	entryPermissions = 0o600

	// versionsEntry describes the upgrader build.
	versionsEntry = "versions.txt"
	// errorsEntry lists everything that could not be collected.
	errorsEntry = "collect_errors.txt"
)

var (
	errFeedbackRequired = errors.New("feedback description must be provided")
	errRunnerRequired   = errors.New("command runner must be provided")
)

// Prepare runs the diagnostic commands and archives their output together with
// the requested files. Collection failures are recorded in the archive and never
// abort it. It returns the archive path.
func Prepare(ctx context.Context, opts *Options) (string, error) {
	ctx = logger.WithName(ctx, "feedback")

	if opts.Feedback == nil {
		return "", errFeedbackRequired
	}

	if opts.Runner == nil {
		return "", errRunnerRequired
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	path := filepath.Join(dir, archivePrefix+now().UTC().Format("20060102150405")+archiveSuffix)

	if err := writeArchive(ctx, path, opts, now()); err != nil {
		_ = os.Remove(path)

		return "", err
	}

	logger.InfoKV(ctx, "Feedback archive created", "path", path)

	return path, nil
}

func writeArchive(ctx context.Context, path string, opts *Options, modTime time.Time) (err error) {
	file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, entryPermissions)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive: %w", closeErr)
		}
	}()

	compressor, err := xz.NewWriter(file)
	if err != nil {
		return fmt.Errorf("create xz writer: %w", err)
	}

	archive := &tarArchive{writer: tar.NewWriter(compressor), modTime: modTime}

	collect(ctx, archive, opts)

	if err = archive.writer.Close(); err != nil {
		return fmt.Errorf("finish tar stream: %w", err)
	}

	if err = compressor.Close(); err != nil {
		return fmt.Errorf("finish xz stream: %w", err)
	}

	return archive.err
}

// collect adds every entry; failures end up in errorsEntry.
func collect(ctx context.Context, archive *tarArchive, opts *Options) {
	var (
		feedback = opts.Feedback
		failures []string
	)

	archive.add(versionsEntry, fmt.Appendf(nil,
		"upgrader: %s\nversion: %s\nissues: %s\n",
		feedback.Upgrader, feedback.Version, feedback.IssuesURL,
	))

	for _, command := range feedback.Commands {
		if len(command.Command) == 0 {
			continue
		}

		output, err := opts.Runner.Run(ctx, command.Command[0], command.Command[1:]...)
		if err != nil {
			logger.WarnKV(ctx, "Feedback command failed", "command", command.Name, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", command.Name, err))
		}

		archive.add(command.Name, output)
	}

	for _, path := range feedback.Files {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			logger.WarnKV(ctx, "Feedback file unavailable", "path", path, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", path, err))

			continue
		}

		archive.add(entryName(path), contents)
	}

	if len(failures) > 0 {
		archive.add(errorsEntry, []byte(strings.Join(failures, "\n")+"\n"))
	}
}

// entryName flattens an absolute path into a single archive entry name.
func entryName(path string) string {
	return strings.ReplaceAll(strings.TrimPrefix(filepath.Clean(path), "/"), "/", "_")
}

// tarArchive remembers the first write error so collection can go on.
type tarArchive struct {
	writer  *tar.Writer
	modTime time.Time
	err     error
}

func (a *tarArchive) add(name string, contents []byte) {
	if a.err != nil {
		return
	}

	header := &tar.Header{
		Name:    name,
		Mode:    entryPermissions,
		Size:    int64(len(contents)),
		ModTime: a.modTime,
	}

	if err := a.writer.WriteHeader(header); err != nil {
		a.err = fmt.Errorf("write header of %s: %w", name, err)
		return
	}

	if _, err := a.writer.Write(contents); err != nil {
		a.err = fmt.Errorf("write %s: %w", name, err)
	}
}
