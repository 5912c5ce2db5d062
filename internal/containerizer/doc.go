// Package containerizer provides container runtime abstraction for mfp's
// code execution sandbox.
//
// ContainerRuntime abstracts the operations the executor's CONTAINER_UP /
// SEND / WAIT / READ / CLEANUP states need: PullImage, StartContainer,
// StopContainer, GetContainerLogs, IsContainerRunning, GetContainerPort,
// RemoveContainer. DockerRuntime implements it by shelling out to the
// docker CLI with exec.CommandContext rather than linking a Docker client
// library — the same CLI-driving approach as this package's upstream.
//
// ContainerConfig's resource fields (Memory, MemorySwap, CPUs, ReadOnly,
// TmpfsSize, NoNewPrivileges, NetworkMode) are not optional tuning knobs:
// the executor sets all of them on every snippet container, matching the
// sandbox's fixed resource envelope. The container stays attached to the
// configured Docker network so generated code can reach the target API;
// the domain allowlist is enforced above this layer, by policy, not by
// cutting network access off.
package containerizer
