package model

import "time"

// RunStatus is the lifecycle state of a pipeline run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one invocation of the curation pipeline.
type Run struct {
	ID               string     `json:"id"`
	Command          string     `json:"command"`
	DatasetDirectory string     `json:"dataset_dir"`
	OutputDirectory  string     `json:"output_dir"`
	Seed             int64      `json:"seed"`
	Status           RunStatus  `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
}

// Stage of a split assignment.
const (
	AssignmentPartitioned = "partitioned"
	AssignmentBalanced    = "balanced"
)

// Assignment places one record in a split/category slot of a run.
type Assignment struct {
	ImageNumber int           `json:"image_number"`
	Filename    string        `json:"filename"`
	Stage       string        `json:"stage"`
	Split       SplitName     `json:"split"`
	Category    Category      `json:"category"`
	Score       *QualityScore `json:"score,omitempty"`
}

// SlotCount is the number of records in one split/category slot.
type SlotCount struct {
	Stage    string    `json:"stage"`
	Split    SplitName `json:"split"`
	Category Category  `json:"category"`
	Count    int       `json:"count"`
}
