// Package brkjob wraps the Braket hybrid-jobs API: job submission, status
// inspection and cancellation.
package brkjob

import (
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/client"
	"github.com/aws/aws-sdk-go/service/braket"
	"github.com/aws/aws-sdk-go/service/braket/braketiface"
	log "github.com/sirupsen/logrus"
)

// Job status labels as reported by the service. The service may report
// further in-progress states; anything outside the terminal set below is
// treated as non-terminal.
const (
	StatusQueued    = "QUEUED"
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
	StatusCancelled = "CANCELLED"
)

// Terminal reports whether a job status admits no further transitions.
func Terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Client wraps the Braket API.
type Client struct {
	Client braketiface.BraketAPI
}

// New initializes a new Client on the given session.
func New(p client.ConfigProvider) *Client {
	return &Client{
		Client: braket.New(p),
	}
}

// JobSpec describes one hybrid-job submission. It is built once per image
// tag and immutable after submission.
type JobSpec struct {
	Name              string
	ImageURI          string
	Device            string
	InstanceType      string
	VolumeSizeGB      int64
	MaxRuntimeSeconds int64
	OutputS3Path      string
	CheckpointS3URI   string
	RoleARN           string
}

// Submit sends the job spec to the service and returns the job ARN.
func (c *Client) Submit(spec *JobSpec) (string, error) {
	input := &braket.CreateJobInput{
		AlgorithmSpecification: &braket.AlgorithmSpecification{
			ContainerImage: &braket.ContainerImage{
				Uri: aws.String(spec.ImageURI),
			},
		},
		CheckpointConfig: &braket.JobCheckpointConfig{
			S3Uri: aws.String(spec.CheckpointS3URI),
		},
		ClientToken: aws.String(clientToken(spec.Name)),
		DeviceConfig: &braket.DeviceConfig{
			Device: aws.String(spec.Device),
		},
		InstanceConfig: &braket.InstanceConfig{
			InstanceType:   aws.String(spec.InstanceType),
			VolumeSizeInGb: aws.Int64(spec.VolumeSizeGB),
		},
		JobName: aws.String(spec.Name),
		OutputDataConfig: &braket.JobOutputDataConfig{
			S3Path: aws.String(spec.OutputS3Path),
		},
		RoleArn: aws.String(spec.RoleARN),
		StoppingCondition: &braket.JobStoppingCondition{
			MaxRuntimeInSeconds: aws.Int64(spec.MaxRuntimeSeconds),
		},
	}

	out, err := c.Client.CreateJob(input)
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.JobArn), nil
}

// Status queries the current status of a job.
func (c *Client) Status(jobARN string) (string, error) {
	out, err := c.Client.GetJob(&braket.GetJobInput{
		JobArn: aws.String(jobARN),
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.Status), nil
}

// FailureReason fetches the failure reason the service recorded for a job.
func (c *Client) FailureReason(jobARN string) (string, error) {
	out, err := c.Client.GetJob(&braket.GetJobInput{
		JobArn: aws.String(jobARN),
	})
	if err != nil {
		return "", err
	}
	return aws.StringValue(out.FailureReason), nil
}

// CancelJob requests cancellation of a hybrid job. Cancelling a job that
// already reached a terminal state is not an error on the service side.
func (c *Client) CancelJob(jobARN string) error {
	log.Debugf("Cancelling job %s", jobARN)
	_, err := c.Client.CancelJob(&braket.CancelJobInput{
		JobArn: aws.String(jobARN),
	})
	return err
}

// CancelQuantumTask requests cancellation of the quantum task associated
// with a job.
func (c *Client) CancelQuantumTask(taskARN string) error {
	log.Debugf("Cancelling quantum task %s", taskARN)
	_, err := c.Client.CancelQuantumTask(&braket.CancelQuantumTaskInput{
		ClientToken:    aws.String(clientToken(taskARN)),
		QuantumTaskArn: aws.String(taskARN),
	})
	return err
}

// clientToken derives a deterministic idempotency token from an identifier
// already unique per submission. Tokens are capped at 64 characters, so
// ARNs are reduced to their resource id.
func clientToken(id string) string {
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	if len(id) > 64 {
		id = id[:64]
	}
	return id
}
