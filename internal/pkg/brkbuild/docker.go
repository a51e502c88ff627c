// Package brkbuild drives the container build tool used to package job
// images.
package brkbuild

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Builder abstracts the container build tool: building an image from a
// recipe, retagging it, authenticating against a registry and pushing.
type Builder interface {
	Build(ctx context.Context, contextDir, dockerfile, tag string) error
	Tag(ctx context.Context, src, ref string) error
	Login(ctx context.Context, username, password, endpoint string) error
	Push(ctx context.Context, ref string) error
}

// DockerCLI implements Builder by shelling out to the docker command line.
type DockerCLI struct {
	// Command is the binary to invoke. Defaults to "docker".
	Command string
}

func (d *DockerCLI) command() string {
	if d.Command == "" {
		return "docker"
	}
	return d.Command
}

func (d *DockerCLI) run(cmd *exec.Cmd) error {
	combinedOut, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %s\n%s", strings.Join(cmd.Args[:2], " "), err, combinedOut)
	}
	log.Debugf("%s: %s", strings.Join(cmd.Args[:2], " "), combinedOut)
	return nil
}

// Build builds an image from the given Dockerfile with contextDir as build
// context and tags it.
func (d *DockerCLI) Build(ctx context.Context, contextDir, dockerfile, tag string) error {
	log.Infof("Building image '%s'", tag)
	return d.run(exec.CommandContext(ctx, d.command(), "build", "-t", tag, "-f", dockerfile, contextDir))
}

// Tag applies a fully-qualified reference to a locally built image.
func (d *DockerCLI) Tag(ctx context.Context, src, ref string) error {
	return d.run(exec.CommandContext(ctx, d.command(), "tag", src, ref))
}

// Login authenticates the build tool against a registry endpoint. The
// password travels over stdin, not argv.
func (d *DockerCLI) Login(ctx context.Context, username, password, endpoint string) error {
	cmd := exec.CommandContext(ctx, d.command(), "login", "--username", username, "--password-stdin", endpoint)
	cmd.Stdin = strings.NewReader(password)
	return d.run(cmd)
}

// Push uploads the image behind ref to its registry.
func (d *DockerCLI) Push(ctx context.Context, ref string) error {
	log.Infof("Pushing image '%s'", ref)
	return d.run(exec.CommandContext(ctx, d.command(), "push", ref))
}
