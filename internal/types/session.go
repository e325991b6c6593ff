package types

import "time"

// SessionStatus is the lifecycle status of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionEnded     SessionStatus = "ended"
	SessionSuspended SessionStatus = "suspended"
	SessionOrphaned  SessionStatus = "orphaned"
)

var ValidSessionStatuses = []string{
	string(SessionActive), string(SessionEnded), string(SessionSuspended), string(SessionOrphaned),
}

// ScopeType is the kind of scope a (multi-)session operates over.
type ScopeType string

const (
	ScopeTask     ScopeType = "task"
	ScopeTaskGroup ScopeType = "taskGroup"
	ScopeSubtree  ScopeType = "subtree"
	ScopeEpic     ScopeType = "epic"
	ScopeEpicPhase ScopeType = "epicPhase"
	ScopeCustom   ScopeType = "custom"
	ScopeGlobal   ScopeType = "global"
)

var ValidScopeTypes = []string{
	string(ScopeTask), string(ScopeTaskGroup), string(ScopeSubtree), string(ScopeEpic),
	string(ScopeEpicPhase), string(ScopeCustom), string(ScopeGlobal),
}

// Scope is a typed union: ScopeType plus the ID it resolves against
// (empty for "global" and most "custom" scopes).
type Scope struct {
	Type ScopeType `json:"type"`
	ID   string    `json:"id,omitempty"`
}

// Session tracks one unit of agent work. Identity format:
// session_<YYYYMMDD>_<HHMMSS>_<6hex>.
type Session struct {
	ID     string        `json:"id"`
	Name   string        `json:"name,omitempty"`
	Status SessionStatus `json:"status"`
	Scope  Scope         `json:"scope"`

	CurrentTask    string     `json:"currentTask,omitempty"`
	TaskStartedAt  *time.Time `json:"taskStartedAt,omitempty"`

	Agent string `json:"agent,omitempty"`

	Notes          []string `json:"notes,omitempty"`
	TasksCompleted []string `json:"tasksCompleted,omitempty"`
	TasksCreated   []string `json:"tasksCreated,omitempty"`

	PreviousSessionID string `json:"previousSessionId,omitempty"`
	NextSessionID     string `json:"nextSessionId,omitempty"`

	HandoffNote string `json:"handoffNote,omitempty"`
	DebriefNote string `json:"debriefNote,omitempty"`

	Statistics map[string]any `json:"statistics,omitempty"`
	ResumeCount int           `json:"resumeCount"`
	Graded      bool          `json:"graded"`

	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// TaskWorkEntry is one row of the append-only focus history:
// (sessionId, taskId, setAt, clearedAt). It is the source of truth for
// "what task is this session focused on right now" (clearedAt == nil).
type TaskWorkEntry struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"sessionId"`
	TaskID    string     `json:"taskId"`
	SetAt     time.Time  `json:"setAt"`
	ClearedAt *time.Time `json:"clearedAt,omitempty"`
}
