package braketexec

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ImageTag correlates the container image, the registry path, the object
// store keys and the log-stream prefix of one task invocation. It is unique
// per invocation within a dispatch and never reused.
type ImageTag string

// JobHandle identifies a submitted remote job. It is opaque beyond string
// identity; nothing is held open locally once a job is submitted.
type JobHandle string

// NewImageTag derives the image tag for a task node. It is a pure function
// of the dispatch and node identity.
func NewImageTag(dispatchID string, nodeID int) ImageTag {
	return ImageTag(fmt.Sprintf("%s-%d", dispatchID, nodeID))
}

// TaskMetadata is the task node identity supplied by the host engine.
type TaskMetadata struct {
	DispatchID string
	NodeID     int
	ResultsDir string
}

// KwArg is a single keyword argument. Keyword arguments travel as an
// ordered list so the remote invocation sees them exactly as supplied.
type KwArg struct {
	Key   string
	Value interface{}
}

// TaskPayload is the unit of work shipped to the remote environment: a
// callable already serialized by the host engine, plus its arguments.
type TaskPayload struct {
	Function []byte
	Args     []interface{}
	Kwargs   []KwArg
}

// BuildRecipe is the textual build specification for one task invocation:
// a Dockerfile wrapping the rendered execution script.
type BuildRecipe struct {
	ImageTag   ImageTag
	ScriptName string
	Script     string
	Dockerfile string
}

// envelope is the object-store representation of a TaskPayload. All blobs
// are base64; args and kwargs are encoded with the configured codec, the
// callable stays in the host engine's serialization format.
type envelope struct {
	Codec    string     `json:"codec"`
	Function string     `json:"function"`
	Args     []string   `json:"args"`
	Kwargs   [][]string `json:"kwargs"`
}

func funcFilename(tag ImageTag) string {
	return fmt.Sprintf("func-%s.json", tag)
}

func resultFilename(meta TaskMetadata) string {
	return fmt.Sprintf("result-%s-%d.json", meta.DispatchID, meta.NodeID)
}

// encodePayload serializes a TaskPayload into the envelope uploaded to the
// object store. Argument order and keyword keys are preserved.
func encodePayload(codec Codec, payload TaskPayload) ([]byte, error) {
	if len(payload.Function) == 0 {
		return nil, &SerializationError{Err: errors.New("empty callable")}
	}

	env := envelope{
		Codec:    codec.Name(),
		Function: base64.StdEncoding.EncodeToString(payload.Function),
		Args:     make([]string, 0, len(payload.Args)),
		Kwargs:   make([][]string, 0, len(payload.Kwargs)),
	}

	for _, arg := range payload.Args {
		blob, err := codec.Marshal(arg)
		if err != nil {
			return nil, &SerializationError{Err: err}
		}
		env.Args = append(env.Args, base64.StdEncoding.EncodeToString(blob))
	}
	for _, kw := range payload.Kwargs {
		blob, err := codec.Marshal(kw.Value)
		if err != nil {
			return nil, &SerializationError{Err: err}
		}
		env.Kwargs = append(env.Kwargs, []string{kw.Key, base64.StdEncoding.EncodeToString(blob)})
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return data, nil
}

// execScriptTemplate is the program the job container runs: it fetches the
// payload envelope, reconstructs the callable and arguments, invokes the
// callable, and uploads the serialized return value.
var execScriptTemplate = template.Must(template.New("exec").Parse(`import base64
import json
import os

import boto3
import cloudpickle as pickle

local_func_filename = os.path.join("{{.Workdir}}", "{{.FuncFilename}}")
local_result_filename = os.path.join("{{.Workdir}}", "{{.ResultFilename}}")

s3 = boto3.client("s3")
s3.download_file("{{.Bucket}}", "{{.FuncFilename}}", local_func_filename)

with open(local_func_filename, "r") as f:
    payload = json.load(f)

def _load(blob):
    raw = base64.b64decode(blob)
    if payload["codec"] == "json":
        return json.loads(raw)
    return pickle.loads(raw)

def _dump(value):
    if payload["codec"] == "json":
        return json.dumps(value).encode("utf-8")
    return pickle.dumps(value)

function = pickle.loads(base64.b64decode(payload["function"]))
args = [_load(a) for a in payload["args"]]
kwargs = {k: _load(v) for k, v in payload["kwargs"]}

result = function(*args, **kwargs)

with open(local_result_filename, "wb") as f:
    f.write(_dump(result))

s3.upload_file(local_result_filename, "{{.Bucket}}", "{{.ResultFilename}}")
`))

var dockerfileTemplate = template.Must(template.New("dockerfile").Parse(`FROM {{.BaseImage}}

RUN apt-get update && apt-get install -y \
  gcc \
  && rm -rf /var/lib/apt/lists/*
RUN pip install --no-cache-dir --upgrade \
  {{.Dependencies}}

WORKDIR {{.Workdir}}

COPY {{.ScriptName}} {{.Workdir}}

ENV SAGEMAKER_PROGRAM {{.ScriptName}}
`))

// formatExecScript renders the execution script for one task invocation.
func formatExecScript(cfg Config, funcFilename, resultFilename string) (string, error) {
	var buf bytes.Buffer
	err := execScriptTemplate.Execute(&buf, struct {
		Workdir        string
		Bucket         string
		FuncFilename   string
		ResultFilename string
	}{
		Workdir:        cfg.ContainerWorkdir,
		Bucket:         cfg.S3Bucket,
		FuncFilename:   funcFilename,
		ResultFilename: resultFilename,
	})
	return buf.String(), err
}

// formatDockerfile renders the Dockerfile wrapping an execution script.
func formatDockerfile(cfg Config, scriptName string) (string, error) {
	var buf bytes.Buffer
	err := dockerfileTemplate.Execute(&buf, struct {
		BaseImage    string
		Dependencies string
		Workdir      string
		ScriptName   string
	}{
		BaseImage:    cfg.BaseImage,
		Dependencies: strings.Join(cfg.ImageDependencies, " \\\n  "),
		Workdir:      cfg.ContainerWorkdir,
		ScriptName:   scriptName,
	})
	return buf.String(), err
}

// packageTask produces the payload envelope bytes and the build recipe for
// one task invocation. Packaging performs no network I/O.
func packageTask(cfg Config, codec Codec, payload TaskPayload, tag ImageTag, meta TaskMetadata) ([]byte, *BuildRecipe, error) {
	data, err := encodePayload(codec, payload)
	if err != nil {
		return nil, nil, err
	}

	scriptName := fmt.Sprintf("exec-%s.py", tag)
	script, err := formatExecScript(cfg, funcFilename(tag), resultFilename(meta))
	if err != nil {
		return nil, nil, &SerializationError{Err: err}
	}
	dockerfile, err := formatDockerfile(cfg, scriptName)
	if err != nil {
		return nil, nil, &SerializationError{Err: err}
	}

	return data, &BuildRecipe{
		ImageTag:   tag,
		ScriptName: scriptName,
		Script:     script,
		Dockerfile: dockerfile,
	}, nil
}
