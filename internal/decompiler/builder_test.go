package decompiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCommander implements Commander interface for testing
type mockCommander struct {
	runFunc func(stdout, stderr io.Writer) error
	stdout  io.Writer
	stderr  io.Writer
}

func (m *mockCommander) SetOutput(stdout, stderr io.Writer) {
	m.stdout = stdout
	m.stderr = stderr
}

func (m *mockCommander) Run() error {
	stdout, stderr := m.stdout, m.stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	return m.runFunc(stdout, stderr)
}

// exitError mimics *exec.ExitError
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func (e *exitError) ExitCode() int {
	return e.code
}

func TestCommandBuilder_BuildCommandArgs(t *testing.T) {
	tests := []struct {
		name        string
		jar         string
		heap        string
		opts        Options
		wantArgs    []string
		wantErr     bool
		errContains string
	}{
		{
			name: "default options",
			jar:  "/opt/vineflower.jar",
			opts: DefaultOptions(),
			wantArgs: []string{
				"-XX:+ExitOnOutOfMemoryError",
				"-jar", "/opt/vineflower.jar",
				"-rsy=0", "-rbr=0",
				"-thr=2",
				"-log=WARN",
				"/in/foo.jar", "/out",
			},
		},
		{
			name: "with heap and threads",
			jar:  "/opt/vineflower.jar",
			heap: "4g",
			opts: Options{Threads: 8, KeepSynthetic: true},
			wantArgs: []string{
				"-Xmx4g",
				"-XX:+ExitOnOutOfMemoryError",
				"-jar", "/opt/vineflower.jar",
				"-rsy=0", "-rbr=0",
				"-thr=8",
				"-log=WARN",
				"/in/foo.jar", "/out",
			},
		},
		{
			name: "synthetic members dropped, zero threads clamps to one",
			jar:  "/opt/vineflower.jar",
			opts: Options{},
			wantArgs: []string{
				"-XX:+ExitOnOutOfMemoryError",
				"-jar", "/opt/vineflower.jar",
				"-thr=1",
				"-log=WARN",
				"/in/foo.jar", "/out",
			},
		},
		{
			name:        "no decompiler jar",
			opts:        DefaultOptions(),
			wantErr:     true,
			errContains: "not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCommandBuilder()
			args, err := cb.BuildCommandArgs(tt.jar, tt.heap, "/in/foo.jar", "/out", tt.opts)

			if tt.wantErr {
				require.Error(t, err)
				if tt.errContains != "" {
					assert.Contains(t, err.Error(), tt.errContains)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestCommandBuilder_BuildCommandArgs_MissingPaths(t *testing.T) {
	cb := NewCommandBuilder()

	_, err := cb.BuildCommandArgs("/opt/vineflower.jar", "", "", "/out", DefaultOptions())
	assert.Error(t, err)
}

func TestCommandBuilder_ExecuteCommand(t *testing.T) {
	tests := []struct {
		name        string
		run         func(stdout, stderr io.Writer) error
		wantErr     bool
		wantOOM     bool
		errContains string
		wantStdout  string
	}{
		{
			name: "success",
			run: func(stdout, stderr io.Writer) error {
				fmt.Fprintln(stdout, "INFO: done")
				return nil
			},
			wantStdout: "INFO: done\n",
		},
		{
			name: "decompiler error",
			run: func(stdout, stderr io.Writer) error {
				fmt.Fprintln(stderr, "java.lang.IllegalStateException: bad constant pool")
				fmt.Fprintln(stderr, "\tat org.jetbrains.java.decompiler.Main.main(Main.java:1)")
				return &exitError{code: 1}
			},
			wantErr:     true,
			errContains: "exit code 1): Decompiler error: java.lang.IllegalStateException: bad constant pool",
		},
		{
			name: "heap exhausted",
			run: func(stdout, stderr io.Writer) error {
				fmt.Fprintln(stderr, "Exception in thread \"main\" java.lang.OutOfMemoryError: Java heap space")
				return &exitError{code: 3}
			},
			wantErr: true,
			wantOOM: true,
		},
		{
			name: "non-exit error",
			run: func(stdout, stderr io.Writer) error {
				return errors.New("executable file not found in $PATH")
			},
			wantErr:     true,
			errContains: "failed to run decompiler: executable file not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewCommandBuilder()
			cb.execCommand = func(ctx context.Context, name string, args ...string) Commander {
				return &mockCommander{runFunc: tt.run}
			}

			var stdout bytes.Buffer
			err := cb.ExecuteCommand(context.Background(), "java", []string{"-jar", "x.jar"}, &stdout)

			assert.Equal(t, tt.wantStdout, stdout.String())

			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, tt.wantOOM, errors.Is(err, ErrOutOfMemory))
			if tt.errContains != "" {
				assert.Contains(t, err.Error(), tt.errContains)
			}
		})
	}
}

func TestCommandBuilder_ExecuteCommand_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	cb := NewCommandBuilder()
	cb.execCommand = func(ctx context.Context, name string, args ...string) Commander {
		return &mockCommander{runFunc: func(stdout, stderr io.Writer) error {
			cancel()
			return &exitError{code: 143}
		}}
	}

	err := cb.ExecuteCommand(ctx, "java", nil, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTailBuffer(t *testing.T) {
	tb := newTailBuffer(8)

	_, _ = tb.Write([]byte("0123456789"))
	assert.Equal(t, "23456789", tb.String())

	_, _ = tb.Write([]byte("ab"))
	assert.Equal(t, "456789ab", tb.String())
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "no output", lastLine(""))
	assert.Equal(t, "boom", lastLine("first\nboom\n"))
	assert.Equal(t, "java.lang.Error: x", lastLine("java.lang.Error: x\n\tat a.b(C.java:1)\n\tat d.e(F.java:2)"))
	assert.Equal(t, "single", strings.TrimSpace(lastLine("single")))
}

func TestNewCommandBuilder(t *testing.T) {
	cb := NewCommandBuilder()
	assert.NotNil(t, cb)
	assert.NotNil(t, cb.execCommand)
}
