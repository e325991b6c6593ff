package types

import "time"

// StageName enumerates the nine canonical lifecycle stages (spec.md §4.4),
// in pipeline order.
type StageName string

const (
	StageResearch   StageName = "research"
	StageConsensus  StageName = "consensus"
	StageADR        StageName = "adr"
	StageSpec       StageName = "spec"
	StageDecompose  StageName = "decompose"
	StageImplement  StageName = "implement"
	StageVerify     StageName = "verify"
	StageTest       StageName = "test"
	StageRelease    StageName = "release"
)

// PipelineStages is the canonical ordered stage list.
var PipelineStages = []StageName{
	StageResearch, StageConsensus, StageADR, StageSpec, StageDecompose,
	StageImplement, StageVerify, StageTest, StageRelease,
}

// StageDefinition describes one stage's static metadata: its position,
// whether it may be skipped, and the prerequisite stages that must be
// completed (or skipped) before it may be entered.
type StageDefinition struct {
	Name       StageName
	Sequence   int
	Skippable  bool
	Prereqs    []StageName
	Gates      []string // named gates evaluated before the stage can complete
	// DefaultTimeout bounds a background job executing this stage (spec.md §5).
	DefaultTimeout time.Duration
}

// StageDefinitions is the canonical, ordered stage metadata table.
var StageDefinitions = []StageDefinition{
	{Name: StageResearch, Sequence: 1, Skippable: false, Prereqs: nil, Gates: []string{"research.sources-cited"}, DefaultTimeout: 30 * time.Minute},
	{Name: StageConsensus, Sequence: 2, Skippable: true, Prereqs: []StageName{StageResearch}, Gates: []string{"consensus.reviewers-agree"}, DefaultTimeout: 30 * time.Minute},
	{Name: StageADR, Sequence: 3, Skippable: true, Prereqs: []StageName{StageResearch, StageConsensus}, Gates: []string{"adr.recorded"}, DefaultTimeout: 20 * time.Minute},
	{Name: StageSpec, Sequence: 4, Skippable: false, Prereqs: []StageName{StageResearch, StageConsensus, StageADR}, Gates: []string{"spec.complete"}, DefaultTimeout: 45 * time.Minute},
	{Name: StageDecompose, Sequence: 5, Skippable: false, Prereqs: []StageName{StageResearch, StageSpec}, Gates: []string{"decompose.subtasks-created"}, DefaultTimeout: 20 * time.Minute},
	{Name: StageImplement, Sequence: 6, Skippable: false, Prereqs: []StageName{StageResearch, StageSpec, StageDecompose}, Gates: []string{"implement.builds"}, DefaultTimeout: 4 * time.Hour},
	{Name: StageVerify, Sequence: 7, Skippable: false, Prereqs: []StageName{StageImplement}, Gates: []string{"verify.reviewed"}, DefaultTimeout: time.Hour},
	{Name: StageTest, Sequence: 8, Skippable: false, Prereqs: []StageName{StageImplement, StageVerify}, Gates: []string{"test.passing"}, DefaultTimeout: time.Hour},
	{Name: StageRelease, Sequence: 9, Skippable: true, Prereqs: []StageName{StageImplement, StageVerify, StageTest}, Gates: []string{"release.tagged"}, DefaultTimeout: 15 * time.Minute},
}

// StageDefFor returns the static definition for a stage name.
func StageDefFor(name StageName) (StageDefinition, bool) {
	for _, d := range StageDefinitions {
		if d.Name == name {
			return d, true
		}
	}
	return StageDefinition{}, false
}

// PipelineStatus is the overall status of a task's lifecycle pipeline.
type PipelineStatus string

const (
	PipelineActive    PipelineStatus = "active"
	PipelineCompleted PipelineStatus = "completed"
	PipelineAborted   PipelineStatus = "aborted"
)

// Pipeline is the per-task lifecycle state.
type Pipeline struct {
	ID            int64          `json:"id"`
	TaskID        string         `json:"taskId"`
	Status        PipelineStatus `json:"status"`
	CurrentStageID int64         `json:"currentStageId"`
	StartedAt     time.Time      `json:"startedAt"`
	CompletedAt   *time.Time     `json:"completedAt,omitempty"`
}

// StageStatus is the status of one stage instance within a pipeline.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageCompleted  StageStatus = "completed"
	StageSkipped    StageStatus = "skipped"
	StageBlocked    StageStatus = "blocked"
	StageFailed     StageStatus = "failed"
)

// Stage is one ordered child of a Pipeline.
type Stage struct {
	ID           int64       `json:"id"`
	PipelineID   int64       `json:"pipelineId"`
	StageName    StageName   `json:"stageName"`
	Sequence     int         `json:"sequence"`
	Status       StageStatus `json:"status"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
	BlockedAt    *time.Time  `json:"blockedAt,omitempty"`
	SkippedAt    *time.Time  `json:"skippedAt,omitempty"`
	Reason       string      `json:"reason,omitempty"`
	Notes        []string    `json:"notes,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// GateResultValue is the outcome of evaluating a gate.
type GateResultValue string

const (
	GatePass GateResultValue = "pass"
	GateFail GateResultValue = "fail"
	GateWarn GateResultValue = "warn"
)

// GateResult records the evaluation of one named gate against a stage.
type GateResult struct {
	ID        int64           `json:"id"`
	StageID   int64           `json:"stageId"`
	GateName  string          `json:"gateName"`
	Result    GateResultValue `json:"result"`
	CheckedBy string          `json:"checkedBy"`
	Details   string          `json:"details,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// EvidenceType enumerates evidence kinds.
type EvidenceType string

const (
	EvidenceFile     EvidenceType = "file"
	EvidenceURL      EvidenceType = "url"
	EvidenceManifest EvidenceType = "manifest"
)

// Evidence links supporting material to a stage.
type Evidence struct {
	ID          int64        `json:"id"`
	StageID     int64        `json:"stageId"`
	URI         string       `json:"uri"`
	Type        EvidenceType `json:"type"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// TransitionType classifies how a stage transition was made.
type TransitionType string

const (
	TransitionAutomatic TransitionType = "automatic"
	TransitionManual    TransitionType = "manual"
	TransitionForced    TransitionType = "forced"
)

// Transition records one stage-to-stage move within a pipeline.
type Transition struct {
	ID             int64          `json:"id"`
	PipelineID     int64          `json:"pipelineId"`
	FromStageID    int64          `json:"fromStageId"`
	ToStageID      int64          `json:"toStageId"`
	TransitionType TransitionType `json:"transitionType"`
	CreatedAt      time.Time      `json:"createdAt"`
}
