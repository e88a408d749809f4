package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spectral/internal/tactile"
	"spectral/internal/tactile/python"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	ctrl := tactile.NewController()
	tc := python.NewToolchain(python.DefaultConfig(), ctrl)
	return NewManager(Config{BaseDir: t.TempDir(), SmokeTimeout: 10 * time.Second}, ctrl, tc)
}

func requirePython(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests run on unix")
	}
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestCreateRun(t *testing.T) {
	m := newTestManager(t)

	id, err := m.CreateRun()
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^run-[0-9a-f]{8}$`), id)

	for _, sub := range []string{"code", "tests", "logs"} {
		fi, err := os.Stat(filepath.Join(m.RunPath(id), sub))
		require.NoError(t, err)
		assert.True(t, fi.IsDir())
	}

	run, err := m.Run(id)
	require.NoError(t, err)
	assert.Equal(t, StateCreated, run.State())

	ids, err := m.ListRuns()
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestCreateRunWithID(t *testing.T) {
	m := newTestManager(t)

	id, err := m.CreateRunWithID("my-run_1")
	require.NoError(t, err)
	assert.Equal(t, "my-run_1", id)

	for _, bad := range []string{"", "../escape", "a/b", ".hidden"} {
		_, err := m.CreateRunWithID(bad)
		assert.Error(t, err, bad)
	}
}

func TestRun_Unknown(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Run("run-missing")
	assert.ErrorIs(t, err, ErrUnknownRun)

	_, err = m.WriteCode("run-missing", "main.py", "print(1)")
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestRun_AdoptsExistingDirectory(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(m.BaseDir(), "run-external", "logs"), 0755))

	run, err := m.Run("run-external")
	require.NoError(t, err)
	assert.Equal(t, StateCreated, run.State())
}

func TestWriteCodeAndTest(t *testing.T) {
	m := newTestManager(t)
	id, err := m.CreateRun()
	require.NoError(t, err)

	codePath, err := m.WriteCode(id, "main.py", "print('hi')\n")
	require.NoError(t, err)
	data, err := os.ReadFile(codePath)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))

	testPath, err := m.WriteTest(id, "test_main.py", "def test_ok():\n    pass\n")
	require.NoError(t, err)
	assert.Equal(t, []string{testPath}, TestFiles(filepath.Join(m.RunPath(id), "tests")))

	_, err = m.WriteCode(id, "../evil.py", "x")
	assert.Error(t, err)
}

func TestCleanupRun_Idempotent(t *testing.T) {
	m := newTestManager(t)
	id, err := m.CreateRun()
	require.NoError(t, err)

	require.NoError(t, m.CleanupRun(id))
	_, err = os.Stat(m.RunPath(id))
	assert.True(t, os.IsNotExist(err))

	assert.NoError(t, m.CleanupRun(id))
	assert.NoError(t, m.CleanupRun("run-never-existed"))
}

func TestCleanupRun_RejectsPathsOutsideBase(t *testing.T) {
	parent := t.TempDir()
	precious := filepath.Join(parent, "precious.txt")
	require.NoError(t, os.WriteFile(precious, []byte("keep"), 0644))

	ctrl := tactile.NewController()
	m := NewManager(Config{BaseDir: filepath.Join(parent, "runs")}, ctrl, python.NewToolchain(python.DefaultConfig(), ctrl))
	_, err := m.CreateRun()
	require.NoError(t, err)

	for _, bad := range []string{"..", ".", "../runs", "a/../..", "/"} {
		err := m.CleanupRun(bad)
		assert.ErrorIs(t, err, ErrInvalidRunID, bad)
	}

	_, err = os.Stat(precious)
	assert.NoError(t, err, "file next to the base dir must survive")
	_, err = os.Stat(m.BaseDir())
	assert.NoError(t, err)
}

func TestRunIDValidation(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Run("..")
	assert.ErrorIs(t, err, ErrInvalidRunID)
	_, err = m.WriteCode("..", "main.py", "x")
	assert.ErrorIs(t, err, ErrInvalidRunID)
	_, err = m.LoadRunMetadata("../x")
	assert.ErrorIs(t, err, ErrInvalidRunID)
	assert.ErrorIs(t, m.SaveRunMetadata("..", &Result{}), ErrInvalidRunID)
	assert.ErrorIs(t, m.Follow(context.Background(), "..", &bytes.Buffer{}), ErrInvalidRunID)
}

func TestCheckSyntax(t *testing.T) {
	m := newTestManager(t)
	id, err := m.CreateRun()
	require.NoError(t, err)
	ctx := context.Background()

	good, err := m.WriteCode(id, "good.py", "def f():\n    return 1\n")
	require.NoError(t, err)
	ok, msg := m.CheckSyntax(ctx, id, good)
	assert.True(t, ok)
	assert.Empty(t, msg)

	bad, err := m.WriteCode(id, "bad.py", "def f(:\n    return 1\n")
	require.NoError(t, err)
	ok, msg = m.CheckSyntax(ctx, id, bad)
	assert.False(t, ok)
	assert.Contains(t, msg, "bad.py")
	assert.Contains(t, msg, "line ")
	assert.Contains(t, msg, "column ")

	ok, msg = m.CheckSyntax(ctx, id, filepath.Join(m.RunPath(id), "code", "missing.py"))
	assert.False(t, ok)
	assert.Contains(t, msg, "Syntax check error")
}

func TestCheckSyntax_InterpreterRejects(t *testing.T) {
	requirePython(t)
	m := newTestManager(t)
	id, err := m.CreateRun()
	require.NoError(t, err)

	tests := []struct {
		name string
		code string
		line string
	}{
		{"python2 print", "x = 1\nprint \"hello\"\n", "line 2"},
		{"return at module level", "return 1\n", "line 1"},
		{"break outside loop", "if True:\n    break\n", "line 2"},
		{"duplicate parameter", "def f(a, a):\n    pass\n", "line 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := m.WriteCode(id, "main.py", tt.code)
			require.NoError(t, err)

			ok, msg := m.CheckSyntax(context.Background(), id, path)
			assert.False(t, ok)
			assert.Contains(t, msg, "Syntax Error in main.py")
			assert.Contains(t, msg, tt.line)
		})
	}

	_, err = os.Stat(filepath.Join(m.RunPath(id), "code", "__pycache__"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunSmokeTest(t *testing.T) {
	requirePython(t)
	m := newTestManager(t)
	id, err := m.CreateRun()
	require.NoError(t, err)

	path, err := m.WriteCode(id, "echo.py", "line = input()\nprint('got', line)\n")
	require.NoError(t, err)

	res := m.RunSmokeTest(context.Background(), id, path, 0, []string{"abc"})
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "got abc")

	_, err = os.Stat(filepath.Join(m.RunPath(id), "logs", "smoke_test.log"))
	assert.NoError(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollow(t *testing.T) {
	m := newTestManager(t)
	id, err := m.CreateRun()
	require.NoError(t, err)
	logPath := filepath.Join(m.RunPath(id), "logs", "smoke_test.log")
	require.NoError(t, os.WriteFile(logPath, []byte("existing line\n"), 0644))

	ctx, cancel := context.WithCancel(context.Background())
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- m.Follow(ctx, id, &out) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "existing line")
	}, 5*time.Second, 20*time.Millisecond)

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("appended line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "appended line")
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(m.RunPath(id), "logs", "pytest.log"), []byte("new file\n"), 0644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "==> pytest.log <==")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}
	assert.Equal(t, 1, strings.Count(out.String(), "existing line"))
}

func TestFollow_UnknownRun(t *testing.T) {
	m := newTestManager(t)
	err := m.Follow(context.Background(), "run-nope", &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrUnknownRun)
}

func TestGenerateBasicTest(t *testing.T) {
	src := GenerateBasicTest("my-app.py")
	assert.Contains(t, src, "def test_import_my_app():")
	assert.Contains(t, src, `"my-app.py"`)
	assert.Contains(t, src, "def test_syntax_valid():")
}
