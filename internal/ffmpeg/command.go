package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// maxStderrLines is how many recent stderr lines are kept for diagnostics.
const maxStderrLines = 100

// CommandBuilder assembles an FFmpeg invocation. Unlike a transcode job,
// pipeline processes read and write several endpoints at once (a stream URL
// plus raw pipes), so inputs and outputs are lists, each with its own
// leading arguments.
type CommandBuilder struct {
	binary     string
	logLevel   string
	globalArgs []string
	inputs     []endpointSpec
	outputs    []endpointSpec
}

type endpointSpec struct {
	args   []string
	target string
}

// NewCommandBuilder creates a builder for the given FFmpeg binary.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		binary:   ffmpegPath,
		logLevel: "error",
	}
}

// LogLevel sets the FFmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the FFmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// GlobalArgs appends arguments placed before any input.
func (b *CommandBuilder) GlobalArgs(args ...string) *CommandBuilder {
	b.globalArgs = append(b.globalArgs, args...)
	return b
}

// AddInput appends an input endpoint. args precede the -i flag and apply to
// this input only.
func (b *CommandBuilder) AddInput(target string, args ...string) *CommandBuilder {
	b.inputs = append(b.inputs, endpointSpec{args: args, target: target})
	return b
}

// AddOutput appends an output endpoint. args precede the target and apply to
// this output only.
func (b *CommandBuilder) AddOutput(target string, args ...string) *CommandBuilder {
	b.outputs = append(b.outputs, endpointSpec{args: args, target: target})
	return b
}

// Build assembles the command.
func (b *CommandBuilder) Build() *Command {
	args := []string{"-loglevel", b.logLevel}
	args = append(args, b.globalArgs...)

	for _, in := range b.inputs {
		args = append(args, in.args...)
		args = append(args, "-i", in.target)
	}
	for _, out := range b.outputs {
		args = append(args, out.args...)
		args = append(args, out.target)
	}

	return &Command{
		Binary: b.binary,
		Args:   args,
	}
}

// Command is a single FFmpeg process. Wiring fields must be set before
// Start; stderr is always owned by the command so recent lines are
// available for diagnostics and line callbacks.
type Command struct {
	Binary string
	Args   []string

	// Stdin, if set, becomes the child's stdin. Pass the read end of an
	// os.Pipe to stream raw frames into the process.
	Stdin io.Reader

	// Stdout, if set, receives the child's stdout. Pass the write end of an
	// os.Pipe to stream raw frames out of the process.
	Stdout io.Writer

	// ExtraFiles become file descriptors 3, 4, ... in the child, addressable
	// as pipe:3, pipe:4 in the argument list.
	ExtraFiles []*os.File

	// OnStderrLine, if set, is invoked for every stderr line as it arrives.
	OnStderrLine func(line string)

	mu      sync.RWMutex
	cmd     *exec.Cmd
	started time.Time

	stderrMu    sync.RWMutex
	stderrLines []string
	stderrDone  chan struct{}

	monitor *ProcessMonitor
}

// String returns the full command line. Route it through the logger rather
// than printing directly so embedded stream credentials get redacted.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// Start launches the process and begins capturing stderr.
func (c *Command) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd != nil {
		return fmt.Errorf("command already started")
	}

	cmd := exec.Command(c.Binary, c.Args...)
	cmd.Stdin = c.Stdin
	cmd.Stdout = c.Stdout
	cmd.ExtraFiles = c.ExtraFiles

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting ffmpeg: %w", err)
	}

	c.cmd = cmd
	c.started = time.Now()
	c.stderrDone = make(chan struct{})
	go c.captureStderr(stderr)

	return nil
}

// captureStderr ring-buffers recent stderr lines and feeds the line callback.
func (c *Command) captureStderr(r io.Reader) {
	defer close(c.stderrDone)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	for scanner.Scan() {
		line := scanner.Text()

		c.stderrMu.Lock()
		c.stderrLines = append(c.stderrLines, line)
		if len(c.stderrLines) > maxStderrLines {
			c.stderrLines = c.stderrLines[len(c.stderrLines)-maxStderrLines:]
		}
		c.stderrMu.Unlock()

		if c.OnStderrLine != nil {
			c.OnStderrLine(line)
		}
	}
}

// StderrLines returns a copy of the most recent stderr lines.
func (c *Command) StderrLines() []string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	out := make([]string, len(c.stderrLines))
	copy(out, c.stderrLines)
	return out
}

// Wait blocks until the process exits. The stderr capture is drained first
// so StderrLines is complete when Wait returns.
func (c *Command) Wait() error {
	c.mu.RLock()
	cmd := c.cmd
	done := c.stderrDone
	c.mu.RUnlock()

	if cmd == nil {
		return fmt.Errorf("command not started")
	}

	if done != nil {
		<-done
	}
	err := cmd.Wait()
	c.stopMonitor()
	return err
}

// Kill terminates the process immediately.
func (c *Command) Kill() error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// Signal sends a signal to the process.
func (c *Command) Signal(sig os.Signal) error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(sig)
}

// IsRunning reports whether the process has started and not yet exited.
func (c *Command) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cmd == nil || c.cmd.Process == nil {
		return false
	}
	return c.cmd.ProcessState == nil
}

// PID returns the process ID, or 0 before Start.
func (c *Command) PID() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Duration returns how long the process has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// StartMonitor begins resource monitoring for the running process.
func (c *Command) StartMonitor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cmd == nil || c.cmd.Process == nil || c.monitor != nil {
		return
	}
	c.monitor = NewProcessMonitor(c.cmd.Process.Pid)
	c.monitor.Start()
}

// Monitor returns the process monitor, or nil if not started.
func (c *Command) Monitor() *ProcessMonitor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.monitor
}

// ProcessStats returns resource usage, or nil if monitoring is off.
func (c *Command) ProcessStats() *ProcessStats {
	c.mu.RLock()
	monitor := c.monitor
	c.mu.RUnlock()

	if monitor == nil {
		return nil
	}
	stats := monitor.Stats()
	return &stats
}

func (c *Command) stopMonitor() {
	c.mu.Lock()
	monitor := c.monitor
	c.monitor = nil
	c.mu.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
}
