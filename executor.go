package braketexec

import (
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/anatomi/braketexec/internal/pkg/brkbuild"
	"github.com/anatomi/braketexec/internal/pkg/brkecr"
	"github.com/anatomi/braketexec/internal/pkg/brkiam"
	"github.com/anatomi/braketexec/internal/pkg/brkjob"
	"github.com/anatomi/braketexec/internal/pkg/brklogs"
	"github.com/anatomi/braketexec/internal/pkg/brkstore"
)

// ResultBundle is what the host engine receives for one completed task:
// the deserialized result value, the concatenated job log text, and a
// slot for a secondary output channel this executor leaves empty.
type ResultBundle struct {
	Result interface{}
	Logs   string
	Extra  string
}

// BraketExecutor dispatches single units of work to Braket hybrid jobs and
// drives them to a terminal state. One executor serves any number of
// concurrent Execute calls; all shared state is read-only after
// construction, and invocations are isolated by their image tags.
type BraketExecutor struct {
	Config Config
	Codec  Codec

	Store    *brkstore.Client
	Registry *brkecr.Client
	Builder  brkbuild.Builder
	Jobs     *brkjob.Client
	Logs     *brklogs.Client
	Identity *brkiam.Client
}

// NewBraketExecutor builds an executor and its service clients. The
// session is scoped to the configured credentials file and profile rather
// than process-wide environment state, constructed once and shared
// read-only by every client.
func NewBraketExecutor(cfg Config) (*BraketExecutor, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
		SharedConfigFiles: []string{cfg.Credentials},
		Profile:           cfg.Profile,
	})
	if err != nil {
		return nil, err
	}

	return &BraketExecutor{
		Config:   cfg,
		Codec:    JSONCodec{},
		Store:    brkstore.New(sess),
		Registry: brkecr.New(sess),
		Builder:  &brkbuild.DockerCLI{},
		Jobs:     brkjob.New(sess),
		Logs:     brklogs.New(sess),
		Identity: brkiam.New(sess),
	}, nil
}

func (e *BraketExecutor) codec() Codec {
	if e.Codec == nil {
		return JSONCodec{}
	}
	return e.Codec
}

// Execute runs one task through the full dispatch pipeline: resolve the
// caller identity, package and publish the artifacts, submit the job, poll
// it to a terminal state, and retrieve the result and logs. It returns a
// ResultBundle or a typed error; the host engine records either against
// the task node. Cancellation via ctx is cooperative and takes effect
// between remote calls, not within them.
func (e *BraketExecutor) Execute(ctx context.Context, payload TaskPayload, meta TaskMetadata) (*ResultBundle, error) {
	tag := NewImageTag(meta.DispatchID, meta.NodeID)
	taskResultsDir := filepath.Join(meta.ResultsDir, meta.DispatchID)

	if err := os.MkdirAll(e.Config.ScratchDir, 0755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(taskResultsDir, 0755); err != nil {
		return nil, err
	}

	account, err := e.Identity.Account()
	if err != nil {
		return nil, &IdentityError{Err: err}
	}

	data, recipe, err := packageTask(e.Config, e.codec(), payload, tag, meta)
	if err != nil {
		return nil, err
	}

	imageURI, err := e.publish(ctx, data, recipe, taskResultsDir)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	handle, err := e.submit(account, tag, imageURI)
	if err != nil {
		return nil, err
	}
	log.Infof("Submitted job %s for %s", handle, tag)

	if err := e.pollJob(ctx, handle); err != nil {
		return nil, err
	}

	return e.queryResult(tag, meta, taskResultsDir)
}

// publish uploads the payload envelope and builds the job image, then
// authenticates, tags and pushes it. Upload and build run concurrently;
// both must succeed before anything is submitted. A copy of the recipe is
// kept with the task results for inspection.
func (e *BraketExecutor) publish(ctx context.Context, payload []byte, recipe *BuildRecipe, taskResultsDir string) (string, error) {
	tag := recipe.ImageTag
	fail := func(err error) (string, error) {
		return "", &PublishError{ImageTag: string(tag), Err: err}
	}

	scriptPath := filepath.Join(e.Config.ScratchDir, recipe.ScriptName)
	dockerfilePath := filepath.Join(e.Config.ScratchDir, fmt.Sprintf("Dockerfile_%s", tag))
	if err := ioutil.WriteFile(scriptPath, []byte(recipe.Script), 0644); err != nil {
		return fail(err)
	}
	defer os.Remove(scriptPath)
	if err := ioutil.WriteFile(dockerfilePath, []byte(recipe.Dockerfile), 0644); err != nil {
		return fail(err)
	}
	defer os.Remove(dockerfilePath)

	if err := ioutil.WriteFile(filepath.Join(taskResultsDir, fmt.Sprintf("Dockerfile_%s", tag)), []byte(recipe.Dockerfile), 0644); err != nil {
		log.Warnf("Could not keep a recipe copy for %s: %s", tag, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.Store.UploadBytes(e.Config.S3Bucket, funcFilename(tag), payload)
	})
	g.Go(func() error {
		return e.Builder.Build(gctx, e.Config.ScratchDir, dockerfilePath, string(tag))
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	creds, err := e.Registry.Credentials()
	if err != nil {
		return fail(err)
	}
	ref := brkecr.RepoURI(creds.Registry(), e.Config.ECRRepo, string(tag))

	if err := e.Builder.Login(ctx, creds.Username, creds.Password, creds.Endpoint); err != nil {
		return fail(err)
	}
	if err := e.Builder.Tag(ctx, string(tag), ref); err != nil {
		return fail(err)
	}
	if err := e.Builder.Push(ctx, ref); err != nil {
		return fail(err)
	}

	return ref, nil
}

// submit builds the job spec for a published image and submits it. The
// spec is a pure function of the image tag, the account and the executor
// configuration, so submission is reproducible. A rejected spec is not
// resubmitted; whether a retry duplicates work is the caller's call.
func (e *BraketExecutor) submit(account string, tag ImageTag, imageURI string) (JobHandle, error) {
	spec := &brkjob.JobSpec{
		Name:              fmt.Sprintf("%s-%s", e.Config.JobNamePrefix, tag),
		ImageURI:          imageURI,
		Device:            e.Config.QuantumDevice,
		InstanceType:      e.Config.ClassicalDevice,
		VolumeSizeGB:      e.Config.Storage,
		MaxRuntimeSeconds: e.Config.TimeLimit,
		OutputS3Path:      fmt.Sprintf("s3://%s/braket/%s", e.Config.S3Bucket, tag),
		CheckpointS3URI:   fmt.Sprintf("s3://%s/checkpoints/%s", e.Config.S3Bucket, tag),
		RoleARN:           fmt.Sprintf("arn:aws:iam::%s:role/%s", account, e.Config.ExecutionRole),
	}

	arn, err := e.Jobs.Submit(spec)
	if err != nil {
		return "", &SubmissionError{Err: err}
	}
	return JobHandle(arn), nil
}

// pollJob queries the job status until it reaches a terminal state,
// waiting PollInterval between queries. The wait yields on ctx so many
// concurrently polling pipelines share threads instead of pinning them.
// Polling needs nothing beyond the handle, so it can resume after a
// restart as long as the caller persisted the handle.
func (e *BraketExecutor) pollJob(ctx context.Context, handle JobHandle) error {
	status, err := e.Jobs.Status(string(handle))
	if err != nil {
		return err
	}

	for !brkjob.Terminal(status) {
		log.Debugf("Job %s is %s", handle, status)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(e.Config.PollInterval):
		}

		status, err = e.Jobs.Status(string(handle))
		if err != nil {
			return err
		}
	}

	switch status {
	case brkjob.StatusFailed:
		reason, err := e.Jobs.FailureReason(string(handle))
		if err != nil {
			return err
		}
		return &RemoteExecutionError{JobARN: string(handle), Reason: reason}
	case brkjob.StatusCancelled:
		return &JobCancelledError{JobARN: string(handle)}
	}
	return nil
}

// queryResult downloads and decodes the result object of a completed job,
// then collects its log stream. The local copy is removed even when
// decoding fails, so task outputs never linger in shared scratch space.
func (e *BraketExecutor) queryResult(tag ImageTag, meta TaskMetadata, taskResultsDir string) (*ResultBundle, error) {
	key := resultFilename(meta)
	localPath := filepath.Join(taskResultsDir, key)

	if _, err := e.Store.Stat(e.Config.S3Bucket, key); err != nil {
		return nil, &ResultNotFoundError{Key: key, Err: err}
	}
	if err := e.Store.Download(e.Config.S3Bucket, key, localPath); err != nil {
		return nil, &ResultNotFoundError{Key: key, Err: err}
	}

	data, err := ioutil.ReadFile(localPath)
	if rmErr := os.Remove(localPath); rmErr != nil {
		log.Warnf("Could not remove local result copy %s: %s", localPath, rmErr)
	}
	if err != nil {
		return nil, err
	}

	result, err := e.codec().Unmarshal(data)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}

	return &ResultBundle{
		Result: result,
		Logs:   e.fetchLogs(tag),
		Extra:  "",
	}, nil
}

// fetchLogs collects the job's log stream. Logs are diagnostic; every
// failure here degrades to an empty string instead of failing retrieval.
func (e *BraketExecutor) fetchLogs(tag ImageTag) string {
	prefix := fmt.Sprintf("%s-%s", e.Config.JobNamePrefix, tag)

	stream, err := e.Logs.StreamByPrefix(e.Config.LogGroup, prefix)
	if err != nil {
		log.Warnf("Could not locate log stream for %s: %s", tag, err)
		return ""
	}
	if stream == "" {
		log.Warnf("No log stream with prefix '%s'", prefix)
		return ""
	}

	events, err := e.Logs.Events(e.Config.LogGroup, stream)
	if err != nil {
		log.Warnf("Could not fetch log events for %s: %s", tag, err)
		return ""
	}
	return events
}

// Cancel issues a remote cancel for a previously submitted unit. The
// handle may be a hybrid-job ARN or a quantum-task ARN. Cancelling an
// already-terminal unit is not an error on the service side and no state
// pre-check is made here. A transport failure propagates unchanged so the
// caller can tell a rejected cancel from a failed call.
func (e *BraketExecutor) Cancel(ctx context.Context, handle JobHandle) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var err error
	if strings.Contains(string(handle), ":job/") {
		err = e.Jobs.CancelJob(string(handle))
	} else {
		err = e.Jobs.CancelQuantumTask(string(handle))
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
