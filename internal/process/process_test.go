package process

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCommander implements Commander interface for testing
type mockCommander struct {
	stdout   io.Writer
	output   string
	startErr error
	waitErr  error
}

func (m *mockCommander) Start() error {
	if m.startErr != nil {
		return m.startErr
	}

	_, err := io.WriteString(m.stdout, m.output)
	return err
}

func (m *mockCommander) Wait() error {
	return m.waitErr
}

func mockRunner(output string, startErr, waitErr error) *ExecRunner {
	return &ExecRunner{
		execCommand: func(ctx context.Context, cmd Command, stdout, stderr io.Writer) Commander {
			return &mockCommander{stdout: stdout, output: output, startErr: startErr, waitErr: waitErr}
		},
	}
}

func requireShell(t *testing.T) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not found")
	}

	return sh
}

func TestCommand_String(t *testing.T) {
	cmd := Command{
		Path: "/opt/gcc/bin/g++",
		Args: []string{"-c", "-I/path with space/include", `-DNAME="x"`, ""},
	}

	assert.Equal(t, `/opt/gcc/bin/g++ -c "-I/path with space/include" "-DNAME=\"x\"" ""`, cmd.String())
}

func TestResult_Lines(t *testing.T) {
	r := &Result{Output: "a.cpp(1): error C1\r\nb.cpp(2): warning C2\r\n"}
	assert.Equal(t, []string{"a.cpp(1): error C1", "b.cpp(2): warning C2"}, r.Lines())
	assert.Nil(t, (&Result{}).Lines())
	assert.False(t, (*Result)(nil).Success())
}

func TestExecRunner_Run_Mock(t *testing.T) {
	r := mockRunner("compiled ok\n", nil, nil)

	res, err := r.Run(context.Background(), Command{Path: "cc"})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, "compiled ok\n", res.Output)
}

func TestExecRunner_SpawnFailure(t *testing.T) {
	r := mockRunner("", errors.New("no such file"), nil)

	_, err := r.Run(context.Background(), Command{Path: "missing-cc"})
	require.Error(t, err)
	assert.True(t, IsSpawnError(err))
	assert.Contains(t, err.Error(), "missing-cc")

	_, err = r.Stream(context.Background(), Command{Path: "missing-cc"}, nil)
	assert.True(t, IsSpawnError(err))
}

func TestExecRunner_WaitFailure(t *testing.T) {
	r := mockRunner("", nil, errors.New("broken pipe"))

	_, err := r.Run(context.Background(), Command{Path: "cc"})
	require.Error(t, err)
	assert.False(t, IsSpawnError(err))
}

func TestExecRunner_Stream_Mock(t *testing.T) {
	r := mockRunner("line one\r\nline two\n", nil, nil)

	var got []string
	res, err := r.Stream(context.Background(), Command{Path: "cl"}, func(line string) {
		got = append(got, line)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two"}, got)
	assert.Equal(t, "line one\nline two\n", res.Output)
}

func TestExecRunner_RealProcess(t *testing.T) {
	sh := requireShell(t)
	r := NewExecRunner()

	res, err := r.Run(context.Background(), Command{Path: sh, Args: []string{"-c", "echo out; echo err 1>&2; exit 3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Contains(t, res.Output, "out")
	assert.Contains(t, res.Output, "err")

	var lines []string
	res, err = r.Stream(context.Background(), Command{Path: sh, Args: []string{"-c", "echo first; echo second 1>&2"}}, func(l string) {
		lines = append(lines, l)
	})
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.ElementsMatch(t, []string{"first", "second"}, lines)
}

func TestExecRunner_RealSpawnFailure(t *testing.T) {
	r := NewExecRunner()

	_, err := r.Run(context.Background(), Command{Path: filepath.Join(t.TempDir(), "no-such-compiler")})
	require.Error(t, err)
	assert.True(t, IsSpawnError(err))
}
