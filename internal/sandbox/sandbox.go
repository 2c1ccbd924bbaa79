// Package sandbox abstracts the execution environment a project runs inside:
// mount a file tree, spawn install/start commands, observe process output and
// a readiness signal carrying the preview address.
package sandbox

import (
	"context"
	"io"

	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
)

// ReadyEvent is emitted once a started process is serving traffic.
type ReadyEvent struct {
	Port int    `json:"port"`
	URL  string `json:"url"`
}

// Process is a handle to one spawned command.
type Process interface {
	// Output streams combined stdout/stderr of the process.
	Output() io.Reader

	// Wait blocks until the process exits.
	Wait() error

	// Kill terminates the process. Best-effort: callers must not assume the
	// process has released its resources by the time Kill returns.
	Kill() error
}

// Sandbox mounts file trees and spawns commands inside an isolated runtime.
type Sandbox interface {
	// Mount replaces the sandbox's file tree with the given one.
	Mount(tree project.FileTree) error

	// Spawn starts cmd with args inside the mounted tree.
	Spawn(ctx context.Context, cmd string, args ...string) (Process, error)

	// Ready delivers readiness events for started servers.
	Ready() <-chan ReadyEvent
}
