package braketexec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("root cause")

	for _, err := range []error{
		&SerializationError{Err: cause},
		&IdentityError{Err: cause},
		&PublishError{ImageTag: "d1-1", Err: cause},
		&SubmissionError{Err: cause},
		&ResultNotFoundError{Key: "result-d1-1.json", Err: cause},
	} {
		assert.True(t, errors.Is(err, cause), "%T should unwrap to its cause", err)
		assert.Contains(t, err.Error(), "root cause")
	}
}

func TestRemoteExecutionErrorCarriesReason(t *testing.T) {
	err := &RemoteExecutionError{JobARN: "arn:job/mock", Reason: "error"}
	assert.Contains(t, err.Error(), "error")
	assert.Contains(t, err.Error(), "arn:job/mock")
}

func TestPublishErrorNamesImageTag(t *testing.T) {
	err := &PublishError{ImageTag: "d1-1", Err: errors.New("push rejected")}
	assert.Contains(t, err.Error(), "d1-1")
}
