package decompiler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/Norgate-AV/decompcache/internal/codes"
)

// Commander interface for testing
type Commander interface {
	Run() error
}

// outputSetter lets non-exec commanders receive the process streams
type outputSetter interface {
	SetOutput(stdout, stderr io.Writer)
}

// exitCoder matches *exec.ExitError and test doubles
type exitCoder interface {
	ExitCode() int
}

// CommandBuilder handles building decompiler commands
type CommandBuilder struct {
	execCommand func(ctx context.Context, name string, args ...string) Commander
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder() *CommandBuilder {
	return &CommandBuilder{
		execCommand: func(ctx context.Context, name string, args ...string) Commander {
			return exec.CommandContext(ctx, name, args...)
		},
	}
}

// BuildCommandArgs builds the JVM arguments that run the decompiler jar on input, writing into output
func (cb *CommandBuilder) BuildCommandArgs(decompilerJar, heap, input, output string, opts Options) ([]string, error) {
	if decompilerJar == "" {
		return nil, ErrNotConfigured
	}

	if input == "" || output == "" {
		return nil, fmt.Errorf("input and output paths are required")
	}

	var cmdArgs []string
	if heap != "" {
		cmdArgs = append(cmdArgs, "-Xmx"+heap)
	}

	cmdArgs = append(cmdArgs, "-XX:+ExitOnOutOfMemoryError")
	cmdArgs = append(cmdArgs, "-jar", decompilerJar)

	if opts.KeepSynthetic {
		cmdArgs = append(cmdArgs, "-rsy=0", "-rbr=0")
	}

	cmdArgs = append(cmdArgs, "-thr="+strconv.Itoa(opts.threads()))
	cmdArgs = append(cmdArgs, "-log=WARN")
	cmdArgs = append(cmdArgs, input, output)

	return cmdArgs, nil
}

// ExecuteCommand runs the decompiler and classifies its failure
func (cb *CommandBuilder) ExecuteCommand(ctx context.Context, javaPath string, cmdArgs []string, stdout io.Writer) error {
	stderr := newTailBuffer(8 << 10)

	c := cb.execCommand(ctx, javaPath, cmdArgs...)
	if cmd, ok := c.(*exec.Cmd); ok {
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	} else if s, ok := c.(outputSetter); ok {
		s.SetOutput(stdout, stderr)
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr exitCoder
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if codes.IsSuccess(code) {
			return nil
		}

		tail := strings.TrimSpace(stderr.String())
		if codes.IsOutOfMemory(code, tail) {
			return fmt.Errorf("%w (exit code %d): %s", ErrOutOfMemory, code, lastLine(tail))
		}

		return fmt.Errorf("decompilation failed (exit code %d): %s: %s", code, codes.GetErrorMessage(code), lastLine(tail))
	}

	return fmt.Errorf("failed to run decompiler: %w", err)
}

func lastLine(s string) string {
	if s == "" {
		return "no output"
	}

	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" && !strings.HasPrefix(line, "at ") {
			return line
		}
	}

	return strings.TrimSpace(lines[len(lines)-1])
}

// tailBuffer keeps the last max bytes written to it
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}

	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
