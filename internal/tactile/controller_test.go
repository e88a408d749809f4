package tactile

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX shell utilities")
	}
}

func TestController_Run(t *testing.T) {
	skipOnWindows(t)
	c := NewController()

	res := c.Run(context.Background(), []string{"sh", "-c", "echo hello; echo oops 1>&2"}, t.TempDir(), 5*time.Second)

	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Contains(t, res.Combined(), "hello")
	assert.Contains(t, res.Combined(), "oops")
	assert.True(t, res.Succeeded())
	assert.Empty(t, res.Signal)
}

func TestController_NonZeroExit(t *testing.T) {
	skipOnWindows(t)
	c := NewController()

	res := c.Run(context.Background(), []string{"sh", "-c", "exit 3"}, "", 5*time.Second)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Succeeded())
}

func TestController_StartFailure(t *testing.T) {
	c := NewController()

	res := c.Run(context.Background(), []string{"spectral-definitely-not-a-binary"}, "", time.Second)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)

	res = c.Exec(context.Background(), Spec{})
	assert.Equal(t, -1, res.ExitCode)
	assert.Contains(t, res.Stderr, "empty command")
}

func TestController_Timeout(t *testing.T) {
	skipOnWindows(t)
	c := NewController()

	start := time.Now()
	res := c.Run(context.Background(), []string{"sleep", "10"}, "", 500*time.Millisecond)
	elapsed := time.Since(start)

	assert.True(t, res.TimedOut)
	assert.Equal(t, TimeoutExitCode, res.ExitCode)
	assert.Less(t, elapsed, 3*time.Second)
}

func TestController_TimeoutKillsGrandchildren(t *testing.T) {
	skipOnWindows(t)

	for _, killer := range []TreeKiller{introspectionKiller{}, platformKiller{}} {
		t.Run(killer.Name(), func(t *testing.T) {
			c := NewController(WithTreeKiller(killer))
			marker := filepath.Join(t.TempDir(), "survivor")

			// The grandchild keeps stdout open; only a tree kill ends the run.
			script := "(sleep 2; touch " + marker + ") & sleep 10"
			start := time.Now()
			res := c.Run(context.Background(), []string{"sh", "-c", script}, "", 300*time.Millisecond)

			assert.True(t, res.TimedOut)
			assert.Less(t, time.Since(start), 2*time.Second)

			time.Sleep(2500 * time.Millisecond)
			_, err := os.Stat(marker)
			assert.True(t, os.IsNotExist(err), "grandchild survived the tree kill")
		})
	}
}

func TestController_RunWithStdin(t *testing.T) {
	skipOnWindows(t)
	c := NewController()

	res := c.RunWithStdin(context.Background(),
		[]string{"sh", "-c", "read a; read b; echo \"$a+$b\""},
		[]string{"4", "5"}, "", 5*time.Second)

	require.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "4+5\n", res.Stdout)
}

func TestController_StdinClosedUnblocksReads(t *testing.T) {
	skipOnWindows(t)
	c := NewController()

	// cat exits once stdin reaches EOF.
	res := c.RunWithStdin(context.Background(), []string{"cat"}, []string{"only"}, "", 5*time.Second)
	assert.False(t, res.TimedOut)
	assert.Equal(t, "only\n", res.Stdout)
}

func TestController_LiveLog(t *testing.T) {
	skipOnWindows(t)
	c := NewController()
	logFile := filepath.Join(t.TempDir(), "logs", "smoke_test.log")

	res := c.Exec(context.Background(), Spec{
		Command: []string{"sh", "-c", "echo line1; echo line2; echo bad 1>&2"},
		Timeout: 5 * time.Second,
		LogFile: logFile,
	})
	require.Equal(t, 0, res.ExitCode)

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	log := string(data)
	assert.Contains(t, log, "Command: sh -c")
	assert.Contains(t, log, "line1\nline2\n")
	assert.Contains(t, log, "[stderr] bad")
	assert.Contains(t, log, "Exit code: 0")
}

func TestProcess_StreamsLinesBeforeExit(t *testing.T) {
	skipOnWindows(t)
	c := NewController()

	p, err := c.Start(context.Background(), Spec{
		Command: []string{"sh", "-c", "echo first; sleep 1; echo second"},
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)

	start := time.Now()
	first := <-p.Lines()
	assert.Equal(t, Line{Text: "first", Stream: StreamStdout}, first)
	assert.Less(t, time.Since(start), 900*time.Millisecond)

	var rest []Line
	for l := range p.Lines() {
		rest = append(rest, l)
	}
	res := p.Wait()
	assert.Equal(t, []Line{{Text: "second", Stream: StreamStdout}}, rest)
	assert.Equal(t, 0, res.ExitCode)
}

func TestProcess_StopAbandonsStream(t *testing.T) {
	skipOnWindows(t)
	c := NewController()

	p, err := c.Start(context.Background(), Spec{
		Command: []string{"sh", "-c", "while true; do echo spam; done"},
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)

	<-p.Lines()
	p.Stop()
	p.Stop()

	res := p.Wait()
	assert.False(t, res.TimedOut)
	assert.NotEqual(t, 0, res.ExitCode)
}

func TestController_OutputCap(t *testing.T) {
	skipOnWindows(t)
	c := NewController(WithMaxOutput(16))

	res := c.Run(context.Background(), []string{"sh", "-c", "echo 0123456789abcdefghijklmnop"}, "", 5*time.Second)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Stdout, 16)
}

func TestController_ContextCancel(t *testing.T) {
	skipOnWindows(t)
	c := NewController()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	res := c.Run(ctx, []string{"sleep", "10"}, "", 10*time.Second)
	assert.False(t, res.TimedOut)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.True(t, strings.Contains(res.Signal, "killed") || res.ExitCode == -1)
}

func TestProbeTreeKiller(t *testing.T) {
	k := ProbeTreeKiller()
	require.NotNil(t, k)
	assert.Contains(t, []string{"introspection", "process-group", "taskkill"}, k.Name())
}

func TestLimitedBuffer(t *testing.T) {
	lb := newLimitedBuffer(5)
	n, err := lb.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	_, _ = lb.Write([]byte("defg"))
	assert.Equal(t, "abcde", lb.String())
	assert.True(t, lb.Truncated())
	_, _ = lb.Write([]byte("more"))
	assert.Equal(t, int64(6), lb.discarded)
}

func TestController_Python(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not on PATH")
	}
	c := NewController()
	res := c.Run(context.Background(), []string{"python3", "-c", "print('py ok')"}, "", 10*time.Second)
	assert.Equal(t, "py ok\n", res.Stdout)
}
