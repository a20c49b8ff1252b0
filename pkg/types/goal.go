package types

import "time"

// GoalStatus is the lifecycle status of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
	GoalStalled   GoalStatus = "stalled"
	GoalAbandoned GoalStatus = "abandoned"
)

// GoalPriority is the priority level of a goal.
type GoalPriority string

const (
	PriorityLow      GoalPriority = "low"
	PriorityMedium   GoalPriority = "medium"
	PriorityHigh     GoalPriority = "high"
	PriorityCritical GoalPriority = "critical"
)

// Milestone is a checkpoint within a goal's metadata.milestones array.
type Milestone struct {
	Title       string     `json:"title"`
	Done        bool       `json:"done"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Goal tracks a longer-running objective. Progress entries are ordinary
// memories tagged "goal-progress" with metadata.goal_id referencing the
// goal's id (C8).
type Goal struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      GoalStatus   `json:"status"`
	Priority    GoalPriority `json:"priority"`
	Deadline    *time.Time   `json:"deadline,omitempty"`
	Milestones  []Milestone  `json:"milestones,omitempty"`
	Embedding   []float32    `json:"embedding,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
