package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// backendTimeLayout is the zone-less timestamp format emitted by the backend.
const backendTimeLayout = "2006-01-02T15:04:05.999999"

// Timestamp is a time.Time that decodes both RFC3339 and the backend's
// zone-less format (interpreted as UTC).
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decoding timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	parsed, err := time.ParseInLocation(backendTimeLayout, s, time.UTC)
	if err != nil {
		return fmt.Errorf("decoding timestamp %q: %w", s, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Author is a commit author.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Commit is a revision in a project's repository.
type Commit struct {
	SHA           string    `json:"sha"`
	Message       string    `json:"message"`
	Author        Author    `json:"author"`
	DateCreated   Timestamp `json:"dateCreated"`
	DateCommitted Timestamp `json:"dateCommitted"`
}

// CommittedAt returns the commit time, falling back to the creation time.
func (c Commit) CommittedAt() time.Time {
	if !c.DateCommitted.IsZero() {
		return c.DateCommitted.Time
	}
	return c.DateCreated.Time
}

// Source is the code a build ran against: a revision plus an optional patch.
type Source struct {
	ID       string `json:"id"`
	Revision Commit `json:"revision"`
	Patch    *struct {
		ID string `json:"id"`
	} `json:"patch"`
}

// ProjectRef identifies the project a build belongs to.
type ProjectRef struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// BuildStats holds the aggregated test counters of a build.
type BuildStats struct {
	TestCount    int `json:"test_count"`
	TestFailures int `json:"test_failures"`
	TestDuration int `json:"test_duration"`
}

// Build is a single CI run for a source.
type Build struct {
	ID           string     `json:"id"`
	Number       int        `json:"number"`
	Name         string     `json:"name"`
	Target       string     `json:"target"`
	Status       Status     `json:"status"`
	Result       Result     `json:"result"`
	Project      ProjectRef `json:"project"`
	Source       Source     `json:"source"`
	DateCreated  Timestamp  `json:"dateCreated"`
	DateStarted  Timestamp  `json:"dateStarted"`
	DateFinished Timestamp  `json:"dateFinished"`
	Duration     int64      `json:"duration"`
	Stats        BuildStats `json:"stats"`
}

func (b Build) RunStatus() Status { return b.Status }
func (b Build) RunResult() Result { return b.Result }

// Elapsed returns the reported duration (milliseconds on the wire).
func (b Build) Elapsed() time.Duration { return time.Duration(b.Duration) * time.Millisecond }

// Job is one unit of a build, split into phases.
type Job struct {
	ID           string    `json:"id"`
	Number       int       `json:"number"`
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	Result       Result    `json:"result"`
	DateCreated  Timestamp `json:"dateCreated"`
	DateStarted  Timestamp `json:"dateStarted"`
	DateFinished Timestamp `json:"dateFinished"`
	Duration     int64     `json:"duration"`
}

func (j Job) RunStatus() Status { return j.Status }
func (j Job) RunResult() Result { return j.Result }

// Elapsed returns the reported duration.
func (j Job) Elapsed() time.Duration { return time.Duration(j.Duration) * time.Millisecond }

// FailureReason is a build-level failure category reported by the backend.
type FailureReason struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

// TestFailures is the failing-test excerpt embedded in a build detail.
type TestFailures struct {
	Total int        `json:"total"`
	Tests []TestCase `json:"tests"`
}

// BuildDetail is the full payload of GET /builds/{id}.
type BuildDetail struct {
	Build
	Jobs         []Job           `json:"jobs"`
	Failures     []FailureReason `json:"failures"`
	TestFailures TestFailures    `json:"testFailures"`
}

// JobIDs returns the IDs of the build's jobs in order.
func (d BuildDetail) JobIDs() []string {
	ids := make([]string, 0, len(d.Jobs))
	for _, j := range d.Jobs {
		ids = append(ids, j.ID)
	}
	return ids
}

// Node is the machine a shard ran on.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// LogSource is one log stream attached to a shard.
type LogSource struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Shard (a "jobstep" on the wire) is one machine-assigned unit of work within a phase.
type Shard struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Status       Status      `json:"status"`
	Result       Result      `json:"result"`
	Node         Node        `json:"node"`
	DateStarted  Timestamp   `json:"dateStarted"`
	DateFinished Timestamp   `json:"dateFinished"`
	Duration     int64       `json:"duration"`
	LogSources   []LogSource `json:"logSources"`
	TestCount    int         `json:"testCount"`
	FailureCount int         `json:"testFailures"`
}

func (s Shard) RunStatus() Status { return s.Status }
func (s Shard) RunResult() Result { return s.Result }

// Elapsed returns the reported duration.
func (s Shard) Elapsed() time.Duration { return time.Duration(s.Duration) * time.Millisecond }

// Phase groups the shards of a job that ran together.
type Phase struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Status       Status    `json:"status"`
	Result       Result    `json:"result"`
	DateStarted  Timestamp `json:"dateStarted"`
	DateFinished Timestamp `json:"dateFinished"`
	Duration     int64     `json:"duration"`
	Shards       []Shard   `json:"steps"`
}

func (p Phase) RunStatus() Status { return p.Status }
func (p Phase) RunResult() Result { return p.Result }

// TestCase is one test result, optionally with its captured output.
type TestCase struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	ShortName  string  `json:"shortName"`
	Package    string  `json:"package"`
	Result     Result  `json:"result"`
	Duration   int64   `json:"duration"`
	NumRetries int     `json:"numRetries"`
	Message    string  `json:"message"`
	Job        *JobRef `json:"job,omitempty"`
}

// JobRef is a reference to the job a test ran in.
type JobRef struct {
	ID string `json:"id"`
}
