package containerizer

import (
	"context"
	"io"
)

// ContainerRuntime defines the interface for container runtime operations
type ContainerRuntime interface {
	// PullImage pulls a container image if not already present
	PullImage(ctx context.Context, image string) error

	// StartContainer starts a container with the given configuration
	StartContainer(ctx context.Context, config ContainerConfig) (string, error)

	// StopContainer stops a running container
	StopContainer(ctx context.Context, containerID string) error

	// GetContainerLogs returns a reader for container logs
	GetContainerLogs(ctx context.Context, containerID string) (io.ReadCloser, error)

	// IsContainerRunning checks if a container is running
	IsContainerRunning(ctx context.Context, containerID string) (bool, error)

	// GetContainerPort gets the mapped host port for a container port
	GetContainerPort(ctx context.Context, containerID string, containerPort string) (string, error)

	// RemoveContainer removes a container
	RemoveContainer(ctx context.Context, containerID string) error
}

// ContainerConfig holds configuration for starting a container.
//
// The sandbox executor always sets Memory, MemorySwap, CPUs, ReadOnly,
// TmpfsSize, NoNewPrivileges and NetworkMode — a snippet container with any
// of these left zero-valued is a policy bug, not a default.
type ContainerConfig struct {
	Name        string            // Container name
	Image       string            // Container image
	Env         map[string]string // Environment variables
	Ports       []string          // Port mappings (host:container)
	Volumes     []string          // Volume mounts (host:container), read-only sandbox mounts use ":ro" suffix
	Entrypoint  []string          // Entrypoint override
	User        string            // User to run as
	HealthCheck []string          // Health check command

	Memory          string // e.g. "256m", passed to --memory
	MemorySwap      string // e.g. "256m" (equal to Memory disables swap), passed to --memory-swap
	CPUs            string // e.g. "0.5", passed to --cpus
	ReadOnly        bool   // mounts the root filesystem read-only
	TmpfsSize       string // e.g. "64m", mounted at /tmp when ReadOnly is set
	NoNewPrivileges bool   // sets --security-opt no-new-privileges
	NetworkMode     string // passed to --network; "none" disables networking entirely
}
