package braketexec

import "fmt"

// SerializationError indicates that the callable or one of its arguments
// could not be packaged. It is raised before any remote side effect occurs.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("payload serialization failed: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// IdentityError indicates that the caller's account identity could not be
// resolved. No job is submitted when this occurs.
type IdentityError struct {
	Err error
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("caller identity resolution failed: %v", e.Err)
}

func (e *IdentityError) Unwrap() error { return e.Err }

// PublishError indicates a failure while building, authenticating, pushing
// or uploading artifacts for an image tag. Partially pushed artifacts are
// left for external garbage collection; tags are unique per attempt.
type PublishError struct {
	ImageTag string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publishing artifacts for %s failed: %v", e.ImageTag, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// SubmissionError indicates that the remote job service rejected the job
// spec. Submissions are never retried automatically since resubmission
// risks duplicate jobs.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("job submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// RemoteExecutionError indicates that the job reached FAILED. Reason is the
// failure reason string supplied by the remote service.
type RemoteExecutionError struct {
	JobARN string
	Reason string
}

func (e *RemoteExecutionError) Error() string {
	return fmt.Sprintf("job %s failed: %s", e.JobARN, e.Reason)
}

// JobCancelledError indicates that the job reached CANCELLED before
// completing. It is a termination outcome distinct from failure; no result
// is fetched.
type JobCancelledError struct {
	JobARN string
}

func (e *JobCancelledError) Error() string {
	return fmt.Sprintf("job %s was cancelled", e.JobARN)
}

// ResultNotFoundError indicates that a COMPLETED job left no result object
// under the expected key, an invariant violation.
type ResultNotFoundError struct {
	Key string
	Err error
}

func (e *ResultNotFoundError) Error() string {
	return fmt.Sprintf("no result object at %s: %v", e.Key, e.Err)
}

func (e *ResultNotFoundError) Unwrap() error { return e.Err }
