package progress

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/plesk/debian11to12/internal/action"
	domain "github.com/plesk/debian11to12/internal/domain/upgrade"
	repository "github.com/plesk/debian11to12/internal/repository/progress"
)

// Fields added to the persisted progress fields by the API.
const (
	FieldRunning       = "running"
	FieldCurrentPhase  = "current_phase"
	FieldCurrentStage  = "current_stage"
	FieldCurrentAction = "current_action"
	FieldStageIndex    = "stage_index"
	FieldStageCount    = "stage_count"
)

// Snapshot is the live state of an upgrade.
type Snapshot struct {
	// Progress is the persisted progress; nil before the first save.
	Progress *domain.Progress
	// Event is the last action the flow started.
	Event action.Event
	// Running is false once the flow returned.
	Running bool
}

// ToStruct converts a snapshot into the API message.
func ToStruct(snapshot Snapshot) (*structpb.Struct, error) {
	message := &structpb.Struct{Fields: map[string]*structpb.Value{}}

	if snapshot.Progress != nil {
		var err error

		message, err = repository.ToStruct(snapshot.Progress)
		if err != nil {
			return nil, err
		}
	}

	event := snapshot.Event
	message.Fields[FieldRunning] = structpb.NewBoolValue(snapshot.Running)
	message.Fields[FieldCurrentPhase] = structpb.NewStringValue(event.Phase.String())
	message.Fields[FieldCurrentStage] = structpb.NewStringValue(event.Stage)
	message.Fields[FieldCurrentAction] = structpb.NewStringValue(event.Action)
	message.Fields[FieldStageIndex] = structpb.NewNumberValue(float64(event.StageIndex))
	message.Fields[FieldStageCount] = structpb.NewNumberValue(float64(event.StageCount))

	return message, nil
}

// FromStruct converts the API message back into a snapshot.
func FromStruct(message *structpb.Struct) (Snapshot, error) {
	fields := message.GetFields()

	snapshot := Snapshot{
		Running: fields[FieldRunning].GetBoolValue(),
		Event: action.Event{
			Phase:      domain.Phase(fields[FieldCurrentPhase].GetStringValue()),
			Stage:      fields[FieldCurrentStage].GetStringValue(),
			Action:     fields[FieldCurrentAction].GetStringValue(),
			StageIndex: int(fields[FieldStageIndex].GetNumberValue()),
			StageCount: int(fields[FieldStageCount].GetNumberValue()),
		},
	}

	if _, found := fields[repository.FieldPhase]; !found {
		return snapshot, nil
	}

	progress, err := repository.FromStruct(message)
	if err != nil {
		return Snapshot{}, fmt.Errorf("decode progress: %w", err)
	}

	snapshot.Progress = progress

	return snapshot, nil
}
