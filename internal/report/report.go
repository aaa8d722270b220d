// Package report collects the per-run summary: counts processed and skipped
// per stage, every per-image issue, and every warning.
package report

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"curator/internal/model"
)

// Pipeline stage names used as report keys.
const (
	StageIngest    = "ingest"
	StageExtract   = "extract"
	StageOverlay   = "overlay"
	StageJoin      = "join"
	StagePartition = "partition"
	StageScore     = "score"
	StageBalance   = "balance"
)

// Counters for records that are kept but worth reporting.
const (
	CounterClinicalMissing   = "clinical_missing"
	CounterCategoryCorrected = "category_corrected"
)

// Issue is a per-image failure that excluded a record from a stage.
type Issue struct {
	Stage    string     `json:"stage"`
	Kind     model.Kind `json:"kind"`
	Filename string     `json:"filename"`
	Reason   string     `json:"reason"`
}

// StageCounts counts records through a stage.
type StageCounts struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
}

// Report is safe for concurrent use by pipeline workers.
type Report struct {
	RunID      string                  `json:"run_id"`
	StartedAt  time.Time               `json:"started_at"`
	FinishedAt time.Time               `json:"finished_at"`
	Stages     map[string]*StageCounts `json:"stages"`
	Counters   map[string]int          `json:"counters"`
	Issues     []Issue                 `json:"issues"`
	Warnings   []model.Warning         `json:"warnings"`

	mu sync.Mutex
}

// New starts an empty report for a run.
func New(runID string) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: time.Now(),
		Stages:    make(map[string]*StageCounts),
		Counters:  make(map[string]int),
		Issues:    []Issue{},
		Warnings:  []model.Warning{},
	}
}

func (r *Report) stage(name string) *StageCounts {
	counts, ok := r.Stages[name]
	if !ok {
		counts = &StageCounts{}
		r.Stages[name] = counts
	}
	return counts
}

// Processed counts n records that passed through a stage.
func (r *Report) Processed(stage string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stage(stage).Processed += n
}

// Add increments a named counter.
func (r *Report) Add(counter string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Counters[counter] += n
}

// Counter returns the value of a named counter.
func (r *Report) Counter(counter string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Counters[counter]
}

// Skip records a per-image failure and counts the record as skipped.
func (r *Report) Skip(stage, filename string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stage(stage).Skipped++
	r.Issues = append(r.Issues, Issue{
		Stage:    stage,
		Kind:     model.IssueKind(err),
		Filename: filename,
		Reason:   err.Error(),
	})
}

// Warn records non-fatal warnings.
func (r *Report) Warn(warnings ...model.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, warnings...)
}

// Finish stamps the end time and orders issues for stable output.
func (r *Report) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	sort.SliceStable(r.Issues, func(i, j int) bool {
		if r.Issues[i].Stage != r.Issues[j].Stage {
			return r.Issues[i].Stage < r.Issues[j].Stage
		}
		return r.Issues[i].Filename < r.Issues[j].Filename
	})
}

// Counts returns a copy of a stage's counters.
func (r *Report) Counts(stage string) StageCounts {
	r.mu.Lock()
	defer r.mu.Unlock()
	if counts, ok := r.Stages[stage]; ok {
		return *counts
	}
	return StageCounts{}
}

// IssuesOf returns the issues of one kind.
func (r *Report) IssuesOf(kind model.Kind) []Issue {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			out = append(out, issue)
		}
	}
	return out
}

// WarningsOf returns the warnings of one kind.
func (r *Report) WarningsOf(kind model.Kind) []model.Warning {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Snapshot returns copies of the issues and warnings recorded so far.
func (r *Report) Snapshot() ([]Issue, []model.Warning) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Issue{}, r.Issues...), append([]model.Warning{}, r.Warnings...)
}

// MarshalJSON encodes the report under its lock.
func (r *Report) MarshalJSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	type Alias struct {
		RunID      string                  `json:"run_id"`
		StartedAt  time.Time               `json:"started_at"`
		FinishedAt time.Time               `json:"finished_at"`
		Stages     map[string]*StageCounts `json:"stages"`
		Counters   map[string]int          `json:"counters"`
		Issues     []Issue                 `json:"issues"`
		Warnings   []model.Warning         `json:"warnings"`
	}
	return json.Marshal(Alias{
		RunID:      r.RunID,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Stages:     r.Stages,
		Counters:   r.Counters,
		Issues:     r.Issues,
		Warnings:   r.Warnings,
	})
}
