// Package types defines the domain model shared by storage, the data
// accessor, and domain operations: tasks, dependencies, relations,
// sessions, task-work history, and the lifecycle pipeline.
package types

import "time"

// TaskStatus is the lifecycle status of a task.
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusActive    TaskStatus = "active"
	StatusBlocked   TaskStatus = "blocked"
	StatusDone      TaskStatus = "done"
	StatusCancelled TaskStatus = "cancelled"
	StatusArchived  TaskStatus = "archived"
)

// ValidTaskStatuses enumerates every status accepted by validateEnum.
var ValidTaskStatuses = []string{
	string(StatusPending), string(StatusActive), string(StatusBlocked),
	string(StatusDone), string(StatusCancelled), string(StatusArchived),
}

// Priority is the task priority.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var ValidPriorities = []string{
	string(PriorityCritical), string(PriorityHigh), string(PriorityMedium), string(PriorityLow),
}

// TaskType distinguishes epics, ordinary tasks, and subtasks.
type TaskType string

const (
	TypeEpic    TaskType = "epic"
	TypeTask    TaskType = "task"
	TypeSubtask TaskType = "subtask"
)

var ValidTaskTypes = []string{string(TypeEpic), string(TypeTask), string(TypeSubtask)}

// TaskSize is a rough sizing estimate.
type TaskSize string

const (
	SizeSmall  TaskSize = "small"
	SizeMedium TaskSize = "medium"
	SizeLarge  TaskSize = "large"
)

var ValidTaskSizes = []string{string(SizeSmall), string(SizeMedium), string(SizeLarge)}

// transitionTable enumerates the allowed status transitions (spec.md §3).
// archived is reachable from any status and is handled separately since it
// is not a peer of the other states in the table (it is a terminal move
// available from everywhere, modeled like the teacher's tombstone status).
var transitionTable = map[TaskStatus][]TaskStatus{
	StatusPending:   {StatusActive},
	StatusActive:    {StatusPending, StatusDone, StatusBlocked, StatusCancelled},
	StatusBlocked:   {StatusActive, StatusCancelled},
	StatusDone:      {StatusPending},
	StatusCancelled: {StatusPending},
	StatusArchived:  {},
}

// CanTransitionStatus reports whether from->to is an allowed task status
// transition per spec.md §3. Archiving is always allowed from a non-archived
// status; un-archiving is never allowed (archive is terminal).
func CanTransitionStatus(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	if to == StatusArchived {
		return from != StatusArchived
	}
	for _, allowed := range transitionTable[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Task is the central domain entity. JSON-serialised collections
// (Labels, Notes, AcceptanceCriteria, Files) are persisted as JSON text
// columns and rehydrated on read, mirroring the teacher's metadata/
// decision-point JSON-blob columns.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	Type        TaskType   `json:"type"`
	ParentID    string     `json:"parentId,omitempty"`
	Phase       string     `json:"phase,omitempty"`
	Size        TaskSize   `json:"size,omitempty"`

	Position        int64 `json:"position"`
	PositionVersion  int64 `json:"positionVersion"`

	Labels             []string `json:"labels,omitempty"`
	Notes              []string `json:"notes,omitempty"`
	AcceptanceCriteria []string `json:"acceptanceCriteria,omitempty"`
	Files              []string `json:"files,omitempty"`
	VerificationMeta   map[string]any `json:"verificationMeta,omitempty"`

	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	CancelledAt   *time.Time `json:"cancelledAt,omitempty"`
	ArchivedAt    *time.Time `json:"archivedAt,omitempty"`
	ArchiveReason string     `json:"archiveReason,omitempty"`
	CycleTimeDays *float64   `json:"cycleTimeDays,omitempty"`

	CreatedBy  string `json:"createdBy,omitempty"`
	ModifiedBy string `json:"modifiedBy,omitempty"`
	SessionID  string `json:"sessionId,omitempty"`

	ContentHash string     `json:"contentHash,omitempty"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
	DeletedBy   string     `json:"deletedBy,omitempty"`
	DeleteReason string    `json:"deleteReason,omitempty"`
}

// RelationType enumerates task relation kinds (spec.md §3).
type RelationType string

const (
	RelationRelated    RelationType = "related"
	RelationBlocks     RelationType = "blocks"
	RelationDuplicates RelationType = "duplicates"
)

// Dependency is a directed edge: TaskID depends on DependsOn.
type Dependency struct {
	TaskID    string    `json:"taskId"`
	DependsOn string    `json:"dependsOn"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
}

// Relation is a weak, non-blocking association between two tasks.
type Relation struct {
	TaskID       string       `json:"taskId"`
	RelatedTo    string       `json:"relatedTo"`
	RelationType RelationType `json:"relationType"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// TaskFilter narrows tasks.list / tasks.find queries.
type TaskFilter struct {
	Status   string
	ParentID string
	Type     string
	Phase    string
	Limit    int
}

// WorkFilter narrows GetReadyWork / GetBlockedIssues-style queries.
type WorkFilter struct {
	Status     string
	Priority   *string
	Assignee   *string
	Unassigned bool
	Labels     []string
	LabelsAny  []string
	ParentID   *string
	Limit      int
}

// StaleFilter narrows "unmodified for N days" queries.
type StaleFilter struct {
	Days   int
	Status string
	Limit  int
}
