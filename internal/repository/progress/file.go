package progress

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/plesk/debian11to12/internal/config"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
)

// Repository defines persistence operations for the upgrade progress.
type Repository interface {
	Load(ctx context.Context) (*domain.Progress, error)
	Save(ctx context.Context, progress *domain.Progress) error
	Remove(ctx context.Context) error
}

// FileRepository persists the upgrade progress to a JSON file on disk.
// JSON is produced and consumed via protobuf JSON (protojson) over a Struct,
// the same message the progress API serves.
type FileRepository struct {
	// path is the filesystem location of the JSON progress file.
	path string
	// mu protects concurrent access to the progress file.
	mu sync.Mutex
}

// ErrNotFound is returned when the progress file does not exist yet.
var ErrNotFound = errors.New("progress not found")

// Field names shared by the progress file and the progress API.
const (
	FieldSessionID          = "session_id"
	FieldUpgrader           = "upgrader"
	FieldPhase              = "phase"
	FieldNextStage          = "next_stage"
	FieldDone               = "done"
	FieldPendingFinalReboot = "pending_final_reboot"
	FieldInterrupted        = "interrupted"
	FieldFailed             = "failed"
	FieldError              = "error"
	FieldStartedAt          = "started_at"
	FieldUpdatedAt          = "updated_at"
)

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the progress file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the progress from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read progress file: %w", err)
	}

	var message structpb.Struct
	if err = protojson.Unmarshal(contents, &message); err != nil {
		return nil, fmt.Errorf("decode progress file: %w", err)
	}

	return FromStruct(&message)
}

// Save writes the progress to disk. The file is replaced atomically so a
// power loss during the upgrade never leaves a truncated progress file.
func (r *FileRepository) Save(_ context.Context, progress *domain.Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, err := ToStruct(progress)
	if err != nil {
		return err
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}

	if err = os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("create progress directory: %w", err)
	}

	tmp := r.path + ".tmp"
	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write progress file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace progress file: %w", err)
	}

	return nil
}

// Remove deletes the progress file. A missing file is not an error.
func (r *FileRepository) Remove(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove progress file: %w", err)
	}

	return nil
}

// ToStruct converts the domain Progress into a protobuf Struct.
func ToStruct(progress *domain.Progress) (*structpb.Struct, error) {
	done := make([]any, 0, len(progress.Done))
	for _, name := range progress.Done {
		done = append(done, name)
	}

	message, err := structpb.NewStruct(map[string]any{
		FieldSessionID:          progress.SessionID,
		FieldUpgrader:           progress.Upgrader,
		FieldPhase:              progress.Phase.String(),
		FieldNextStage:          progress.NextStage,
		FieldDone:               done,
		FieldPendingFinalReboot: progress.PendingFinalReboot,
		FieldInterrupted:        progress.Interrupted,
		FieldFailed:             progress.Failed,
		FieldError:              progress.Error,
		FieldStartedAt:          formatTime(progress.StartedAt),
		FieldUpdatedAt:          formatTime(progress.UpdatedAt),
	})
	if err != nil {
		return nil, fmt.Errorf("build progress message: %w", err)
	}

	return message, nil
}

// FromStruct converts a protobuf Struct into the domain Progress.
func FromStruct(message *structpb.Struct) (*domain.Progress, error) {
	fields := message.GetFields()

	phase, err := domain.ParsePhase(fields[FieldPhase].GetStringValue())
	if err != nil {
		return nil, fmt.Errorf("decode progress phase: %w", err)
	}

	var done []string
	for _, value := range fields[FieldDone].GetListValue().GetValues() {
		done = append(done, value.GetStringValue())
	}

	return &domain.Progress{
		SessionID:          fields[FieldSessionID].GetStringValue(),
		Upgrader:           fields[FieldUpgrader].GetStringValue(),
		Phase:              phase,
		NextStage:          int(fields[FieldNextStage].GetNumberValue()),
		Done:               done,
		PendingFinalReboot: fields[FieldPendingFinalReboot].GetBoolValue(),
		Interrupted:        fields[FieldInterrupted].GetStringValue(),
		Failed:             fields[FieldFailed].GetStringValue(),
		Error:              fields[FieldError].GetStringValue(),
		StartedAt:          parseTime(fields[FieldStartedAt].GetStringValue()),
		UpdatedAt:          parseTime(fields[FieldUpdatedAt].GetStringValue()),
	}, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}

	return t
}
