package sandbox

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/rs/zerolog"
)

const containerWorkDir = "/workspace"

type DockerOptions struct {
	MemoryLimitMb  int
	PidsLimit      int64
	MaxOutputBytes int
}

// containerAPI is the part of the docker client a run needs.
type containerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerAttach(ctx context.Context, containerID string, options container.AttachOptions) (types.HijackedResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// Docker runs each invocation in a throwaway container of the language image
// with the job workspace bind-mounted as the working directory.
type Docker struct {
	cli        *client.Client
	containers containerAPI
	opts       DockerOptions
	logger     *zerolog.Logger
}

func NewDocker(opts DockerOptions, logger *zerolog.Logger) (*Docker, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, err
	}
	d := newDocker(cli, opts, logger)
	d.cli = cli
	return d, nil
}

func newDocker(containers containerAPI, opts DockerOptions, logger *zerolog.Logger) *Docker {
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if opts.PidsLimit <= 0 {
		// fork bombs
		opts.PidsLimit = 64
	}
	if opts.MemoryLimitMb <= 0 {
		opts.MemoryLimitMb = 512
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Docker{containers: containers, opts: opts, logger: logger}
}

func (s *Docker) Run(ctx context.Context, inv Invocation) (*Result, error) {
	if inv.Image == "" {
		return nil, fmt.Errorf("no image configured for command %q", inv.Command)
	}

	memory := int64(s.opts.MemoryLimitMb) * 1024 * 1024
	pidsLimit := s.opts.PidsLimit

	resp, err := s.containers.ContainerCreate(ctx, &container.Config{
		Image:           inv.Image,
		Cmd:             []string{"sh", "-c", inv.Command},
		Tty:             false,
		OpenStdin:       true,
		StdinOnce:       true,
		AttachStdin:     true,
		AttachStdout:    true,
		AttachStderr:    true,
		NetworkDisabled: true,
		WorkingDir:      containerWorkDir,
	}, &container.HostConfig{
		Binds: []string{inv.Dir + ":" + containerWorkDir},
		Resources: container.Resources{
			Memory:     memory,
			MemorySwap: memory,
			CPUQuota:   100000,
			PidsLimit:  &pidsLimit,
		},
		NetworkMode: "none",
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=16m,mode=1777",
		},
	}, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	defer s.containers.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})

	attach, err := s.containers.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach container: %w", err)
	}
	defer attach.Close()

	// Registered before start so a fast exit is not missed.
	waitCh, waitErrCh := s.containers.ContainerWait(ctx, resp.ID, container.WaitConditionNextExit)

	overflow := make(chan struct{}, 2)
	signalOverflow := func() { overflow <- struct{}{} }
	stdout := newCappedBuffer(s.opts.MaxOutputBytes, signalOverflow)
	stderr := newCappedBuffer(s.opts.MaxOutputBytes, signalOverflow)

	copied := make(chan struct{})
	go func() {
		defer close(copied)
		_, _ = stdcopy.StdCopy(stdout, stderr, attach.Reader)
	}()

	start := time.Now()
	if err := s.containers.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}
	deadline := time.NewTimer(inv.Timeout)
	defer deadline.Stop()

	// A program that never reads stdin must not hold the deadline back;
	// closing the attach connection on return unblocks this writer.
	go func() {
		if inv.Stdin != "" {
			if _, err := io.Copy(attach.Conn, strings.NewReader(inv.Stdin)); err != nil {
				s.logger.Debug().Err(err).Str("container", resp.ID).Msg("stdin write interrupted")
			}
		}
		_ = attach.CloseWrite()
	}()

	var exitCode int
	for waiting := true; waiting; {
		select {
		case <-deadline.C:
			elapsed := time.Since(start)
			s.kill(resp.ID)
			return TimeoutResult(stdout.String(), elapsed), nil
		case <-overflow:
			s.kill(resp.ID)
		case w := <-waitCh:
			if w.Error != nil {
				return nil, fmt.Errorf("container wait failed: %s", w.Error.Message)
			}
			exitCode = int(w.StatusCode)
			waiting = false
		case err := <-waitErrCh:
			return nil, fmt.Errorf("container wait failed: %w", err)
		case <-ctx.Done():
			s.kill(resp.ID)
			return nil, fmt.Errorf("run aborted: %w", ctx.Err())
		}
	}
	elapsed := time.Since(start)

	select {
	case <-copied:
	case <-time.After(waitDelay):
		s.logger.Warn().Str("container", resp.ID).Msg("output stream did not drain")
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		TimeMs:   elapsed.Milliseconds(),
	}
	switch {
	case stdout.Overflowed():
		res.Message = "stdout " + ErrOutputLimit.Error()
	case stderr.Overflowed():
		res.Message = "stderr " + ErrOutputLimit.Error()
	}
	return res, nil
}

func (s *Docker) kill(id string) {
	if err := s.containers.ContainerKill(context.Background(), id, "SIGKILL"); err != nil {
		s.logger.Debug().Err(err).Str("container", id).Msg("container kill failed")
	}
}

func (s *Docker) EnsureImage(ctx context.Context, img string) error {
	_, _, err := s.cli.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil
	}

	s.logger.Info().Str("image", img).Msg("pulling docker image")
	reader, err := s.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", img, err)
	}
	defer reader.Close()

	// the pull only completes once the stream is consumed
	_, _ = io.Copy(io.Discard, reader)

	s.logger.Info().Str("image", img).Msg("successfully pulled docker image")
	return nil
}

func (s *Docker) Close() error {
	if s.cli == nil {
		return nil
	}
	return s.cli.Close()
}
