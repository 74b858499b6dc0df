package screening

import (
	"time"

	"github.com/google/uuid"
)

// Stage is one background check of the host pipeline
type Stage string

const (
	StageIdentity  Stage = "identity"
	StageDMV       Stage = "dmv"
	StageCriminal  Stage = "criminal"
	StageInsurance Stage = "insurance"
	StageCredit    Stage = "credit"
)

// Stages lists the pipeline in execution order
var Stages = []Stage{StageIdentity, StageDMV, StageCriminal, StageInsurance, StageCredit}

// StageStatus of a single stage record
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusInProgress StageStatus = "in_progress"
	StatusPassed     StageStatus = "passed"
	StatusFailed     StageStatus = "failed"
	StatusSkipped    StageStatus = "skipped"
)

// PipelineStatus summarizes all stages of a host
type PipelineStatus string

const (
	PipelineInProgress PipelineStatus = "in_progress"
	PipelinePassed     PipelineStatus = "passed"
	PipelineFailed     PipelineStatus = "failed"
)

// StageRecord is the persisted status of one stage
type StageRecord struct {
	ID          uuid.UUID   `json:"id"`
	HostID      uuid.UUID   `json:"host_id"`
	Stage       Stage       `json:"stage"`
	Position    int         `json:"position"`
	Status      StageStatus `json:"status"`
	NextRunAt   *time.Time  `json:"next_run_at,omitempty"`
	AttemptedAt *time.Time  `json:"attempted_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Notes       string      `json:"notes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Last reports whether this is the final stage of the pipeline
func (r *StageRecord) Last() bool {
	return r.Position == len(Stages)
}

// Pipeline is the screening state of one host
type Pipeline struct {
	HostID uuid.UUID      `json:"host_id"`
	Status PipelineStatus `json:"status"`
	Stages []*StageRecord `json:"stages"`
}

// Summarize derives the pipeline status from its stages
func Summarize(stages []*StageRecord) PipelineStatus {
	passed := 0
	for _, s := range stages {
		switch s.Status {
		case StatusFailed:
			return PipelineFailed
		case StatusPassed:
			passed++
		}
	}
	if len(stages) > 0 && passed == len(stages) {
		return PipelinePassed
	}
	return PipelineInProgress
}

// CheckResult is the verdict of a provider for one stage
type CheckResult struct {
	Passed bool   `json:"passed"`
	Notes  string `json:"notes"`
}

// Outcome is a completed stage together with its effect on the rest of the pipeline
type Outcome struct {
	Stage  *StageRecord
	Passed bool
	Notes  string
	At     time.Time
	// NextRunAt schedules the following stage when Stage passed and is not the last
	NextRunAt *time.Time
}
