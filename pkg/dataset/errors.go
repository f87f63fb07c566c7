package dataset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoFiles              = errors.New("no files to upload")
	ErrFileNotFound         = errors.New("file not found")
	ErrUnsupportedExtension = errors.New("unsupported file extension")
	ErrJobFailed            = errors.New("upload job failed")
	ErrInvalidStatus        = errors.New("invalid upload status")
	ErrUnknownJob           = errors.New("unknown upload job")
	ErrMalformedResponse    = errors.New("malformed dataset response")
)

// FilesNotFoundError lists every path that does not exist.
type FilesNotFoundError struct {
	Paths []string
}

func (e *FilesNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFileNotFound, strings.Join(e.Paths, ", "))
}

func (e *FilesNotFoundError) Unwrap() error {
	return ErrFileNotFound
}

// UnsupportedExtensionError lists every path with an extension outside the
// allow-list.
type UnsupportedExtensionError struct {
	Paths []string
}

func (e *UnsupportedExtensionError) Error() string {
	return fmt.Sprintf("%s, valid extensions: %s, given: %s",
		ErrUnsupportedExtension, strings.Join(SupportedExtensions(), ", "), strings.Join(e.Paths, ", "))
}

func (e *UnsupportedExtensionError) Unwrap() error {
	return ErrUnsupportedExtension
}

type FailedJob struct {
	ID      string
	Path    string
	Message string
}

// JobsFailedError reports every job that failed in one poll.
type JobsFailedError struct {
	Jobs []FailedJob
}

func (e *JobsFailedError) Error() string {
	parts := make([]string, len(e.Jobs))
	for i, job := range e.Jobs {
		parts[i] = fmt.Sprintf("file %s (upload %s): %s", job.Path, job.ID, job.Message)
	}
	return fmt.Sprintf("%s: %s", ErrJobFailed, strings.Join(parts, "; "))
}

func (e *JobsFailedError) Unwrap() error {
	return ErrJobFailed
}
