package dataset

import (
	"encoding/json"
	"fmt"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// ParseStatus rejects values the dataset API is not known to return.
func ParseStatus(s string) (Status, error) {
	switch status := Status(s); status {
	case StatusPending, StatusProcessing, StatusSuccess, StatusFailed:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Terminal reports whether a job in this status will not change again.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, data)
	}
	status, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = status
	return nil
}

// UploadJob is the state of one uploaded file at the time of a poll.
type UploadJob struct {
	ID      string `json:"uploadId"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

// Session maps the upload ids returned while staging to the files they were
// created from. It is not modified after staging.
type Session struct {
	WrapperID string
	Jobs      map[string]string
}
