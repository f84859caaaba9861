package domain

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Status is the lifecycle stage of a runnable (build, job, shard).
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusUnknown    Status = "unknown"
)

// Result is the outcome reported for a runnable. Values outside the
// constants below are preserved as-is and classified as unknown.
type Result string

const (
	ResultPassed      Result = "passed"
	ResultFailed      Result = "failed"
	ResultAborted     Result = "aborted"
	ResultInfraFailed Result = "infra_failed"
	ResultUnknown     Result = "unknown"
)

// Runnable is anything carrying a status/result pair.
type Runnable interface {
	RunStatus() Status
	RunResult() Result
}

// UnmarshalJSON accepts both the backend's {"id": "...", "name": "..."}
// object form and a bare string.
func (s *Status) UnmarshalJSON(data []byte) error {
	v, err := decodeEnum(data)
	if err != nil {
		return err
	}
	*s = Status(v)
	return nil
}

// UnmarshalJSON accepts both the object and the bare string form.
func (r *Result) UnmarshalJSON(data []byte) error {
	v, err := decodeEnum(data)
	if err != nil {
		return err
	}
	*r = Result(v)
	return nil
}

func decodeEnum(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return strings.ToLower(s), nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	return strings.ToLower(obj.ID), nil
}
