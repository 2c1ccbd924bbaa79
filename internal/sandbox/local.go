package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/Vaibhav-59/CodeVerse/internal/model/project"
)

// ErrUnsafePath is returned when a tree key would escape the sandbox root.
var ErrUnsafePath = errors.New("file path escapes sandbox root")

// portLine matches the "listening on …:<port>" style lines dev servers print
// on startup.
var portLine = regexp.MustCompile(`(?i)(?:localhost|127\.0\.0\.1|0\.0\.0\.0|port\s*[: ])\s*:?(\d{2,5})`)

// LocalRunner implements Sandbox on the host filesystem: the tree is
// materialized under a root directory and commands run there via os/exec.
type LocalRunner struct {
	root  string
	ready chan ReadyEvent
}

// NewLocalRunner creates a sandbox rooted at dir, creating it if needed.
func NewLocalRunner(dir string) (*LocalRunner, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sandbox root: %w", err)
	}
	return &LocalRunner{
		root:  dir,
		ready: make(chan ReadyEvent, 1),
	}, nil
}

// Root returns the directory the tree is materialized into.
func (r *LocalRunner) Root() string {
	return r.root
}

// Mount wipes the root and writes every tree entry under it.
func (r *LocalRunner) Mount(tree project.FileTree) error {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return fmt.Errorf("read sandbox root: %w", err)
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(r.root, entry.Name())); err != nil {
			return fmt.Errorf("clear sandbox root: %w", err)
		}
	}

	for path, entry := range tree {
		dest, err := r.resolve(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create parent for %s: %w", path, err)
		}
		if err := os.WriteFile(dest, []byte(entry.File.Contents), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}

// Spawn starts cmd inside the mounted tree. Output lines are scanned for a
// listening-port announcement; the first match emits a ReadyEvent.
func (r *LocalRunner) Spawn(ctx context.Context, cmd string, args ...string) (Process, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = r.root

	out := newStreamBuffer()
	c.Stdout = io.MultiWriter(out, &portWatcher{emit: r.announce})
	c.Stderr = out

	if err := c.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", cmd, err)
	}

	proc := &localProcess{cmd: c, out: out, done: make(chan struct{})}
	go func() {
		proc.waitErr = c.Wait()
		out.CloseWrite()
		close(proc.done)
	}()
	return proc, nil
}

// Ready delivers at most one event per started server.
func (r *LocalRunner) Ready() <-chan ReadyEvent {
	return r.ready
}

func (r *LocalRunner) announce(port int) {
	ev := ReadyEvent{Port: port, URL: fmt.Sprintf("http://localhost:%d", port)}
	select {
	case r.ready <- ev:
	default:
		// A stale unconsumed event is dropped in favor of keeping the
		// spawner unblocked.
	}
}

func (r *LocalRunner) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, path)
	}
	return filepath.Join(r.root, clean), nil
}

type localProcess struct {
	cmd     *exec.Cmd
	out     *streamBuffer
	done    chan struct{}
	waitErr error
}

func (p *localProcess) Output() io.Reader {
	return p.out
}

func (p *localProcess) Wait() error {
	<-p.done
	return p.waitErr
}

func (p *localProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// streamBuffer is a blocking reader over data written concurrently by the
// running process. Read blocks until data arrives or the writer side closes.
type streamBuffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    bytes.Buffer
	closed bool
}

func newStreamBuffer() *streamBuffer {
	sb := &streamBuffer{}
	sb.cond = sync.NewCond(&sb.mu)
	return sb
}

func (sb *streamBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	n, err := sb.buf.Write(p)
	sb.cond.Broadcast()
	return n, err
}

func (sb *streamBuffer) Read(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	for sb.buf.Len() == 0 && !sb.closed {
		sb.cond.Wait()
	}
	if sb.buf.Len() == 0 {
		return 0, io.EOF
	}
	return sb.buf.Read(p)
}

func (sb *streamBuffer) CloseWrite() {
	sb.mu.Lock()
	sb.closed = true
	sb.cond.Broadcast()
	sb.mu.Unlock()
}

// portWatcher scans process output line by line for the first port
// announcement.
type portWatcher struct {
	emit    func(port int)
	partial bytes.Buffer
	found   bool
}

func (w *portWatcher) Write(p []byte) (int, error) {
	if w.found {
		return len(p), nil
	}
	w.partial.Write(p)
	for {
		line, rest, ok := bytes.Cut(w.partial.Bytes(), []byte("\n"))
		if !ok {
			break
		}
		if m := portLine.FindSubmatch(line); m != nil {
			if port, err := strconv.Atoi(string(m[1])); err == nil {
				w.found = true
				w.emit(port)
				w.partial.Reset()
				return len(p), nil
			}
		}
		remaining := append([]byte(nil), rest...)
		w.partial.Reset()
		w.partial.Write(remaining)
	}
	return len(p), nil
}
