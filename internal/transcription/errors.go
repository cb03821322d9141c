package transcription

import (
	"context"
	"errors"
	"fmt"

	"github.com/lexiqai/voice-interview/internal/capture"
)

// Error kinds reported on answer records and metrics
const (
	KindUpload            = "UploadError"
	KindSubmit            = "SubmitError"
	KindTranscription     = "TranscriptionError"
	KindTimeout           = "TimeoutError"
	KindProtocol          = "ProtocolError"
	KindPoll              = "PollError"
	KindEmptyAnswer       = "EmptyAnswer"
	KindDeviceUnavailable = "DeviceUnavailable"
	KindCancelled         = "Cancelled"
	KindUnknown           = "Unknown"
)

// ErrEmptyAnswer marks a question for which no usable audio was captured
var ErrEmptyAnswer = errors.New("no usable audio captured")

// UploadError is a failed step 1. Status is 0 for I/O failures.
type UploadError struct {
	Status int
	Err    error
}

func (e *UploadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upload failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SubmitError is a failed step 2
type SubmitError struct {
	Status int
	Err    error
}

func (e *SubmitError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("submit failed with status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("submit failed: %v", e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// TranscriptionError is a job the service reported as failed
type TranscriptionError struct {
	JobID  string
	Reason string
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription job %s failed: %s", e.JobID, e.Reason)
}

// TimeoutError means the job was still pending after the last poll
type TimeoutError struct {
	JobID      string
	Attempts   int
	LastStatus string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transcription job %s still %s after %d polls", e.JobID, e.LastStatus, e.Attempts)
}

// PollError is a transient poll failure that outlasted the attempt budget.
// Err is the error from the last attempt.
type PollError struct {
	JobID    string
	Attempts int
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("polling job %s failed after %d attempts: %v", e.JobID, e.Attempts, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// ProtocolError is a response that does not match the expected shape
type ProtocolError struct {
	Step string
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Step, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolErrorf(step, format string, args ...any) error {
	return &ProtocolError{Step: step, Err: fmt.Errorf(format, args...)}
}

// Kind classifies err into the answer-record taxonomy
func Kind(err error) string {
	var (
		uploadErr        *UploadError
		submitErr        *SubmitError
		transcriptionErr *TranscriptionError
		timeoutErr       *TimeoutError
		pollErr          *PollError
		protocolErr      *ProtocolError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &uploadErr):
		return KindUpload
	case errors.As(err, &submitErr):
		return KindSubmit
	case errors.As(err, &transcriptionErr):
		return KindTranscription
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &protocolErr):
		return KindProtocol
	case errors.As(err, &pollErr):
		return KindPoll
	case errors.Is(err, ErrEmptyAnswer):
		return KindEmptyAnswer
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, context.Canceled):
		return KindCancelled
	default:
		return KindUnknown
	}
}
