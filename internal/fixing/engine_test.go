package fixing

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"spectral/internal/articulation"
	"spectral/internal/events"
	"spectral/internal/perception"
	"spectral/internal/tactile"
	"spectral/internal/tactile/python"
	"spectral/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestEngine(t *testing.T, gen types.Generator, opts ...Option) (*Engine, string) {
	t.Helper()
	ctrl := tactile.NewController()
	tmp := t.TempDir()
	opts = append(opts, WithTempDir(tmp))
	return NewEngine(gen, ctrl, python.NewToolchain(python.DefaultConfig(), ctrl), opts...), tmp
}

func requirePython(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("process tests use POSIX python")
	}
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func TestParseDiagnosis(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		want       types.Diagnosis
		wantOk     bool
		wantMethod articulation.ParseMethod
	}{
		{
			name:  "fenced json",
			reply: "Here you go:\n```json\n{\"root_cause\": \"missing import\", \"suggested_fix\": \"import os\", \"fix_strategy\": \"regenerate_code\", \"confidence\": 0.9}\n```",
			want: types.Diagnosis{
				ErrorKind: "NameError", ErrorDetail: "name 'os' is not defined",
				RootCause: "missing import", SuggestedFix: "import os",
				Strategy: types.FixRegenerateCode, Confidence: 0.9,
			},
			wantOk:     true,
			wantMethod: articulation.MethodFencedJSON,
		},
		{
			name:  "bare object in prose",
			reply: `The answer is {"root_cause": "typo", "fix_strategy": "adjust_parameters", "confidence": "0.7"} hope it helps`,
			want: types.Diagnosis{
				ErrorKind: "NameError", ErrorDetail: "name 'os' is not defined",
				RootCause: "typo", SuggestedFix: "No suggestion",
				Strategy: types.FixAdjustParameters, Confidence: 0.7,
			},
			wantOk:     true,
			wantMethod: articulation.MethodBraceSpan,
		},
		{
			name:  "missing fields take defaults",
			reply: `{}`,
			want: types.Diagnosis{
				ErrorKind: "NameError", ErrorDetail: "name 'os' is not defined",
				RootCause: "Unknown", SuggestedFix: "No suggestion",
				Strategy: types.FixManual, Confidence: 0.5,
			},
			wantOk:     true,
			wantMethod: articulation.MethodBraceSpan,
		},
		{
			name:  "unknown strategy and out of range confidence",
			reply: `{"root_cause": "x", "suggested_fix": "y", "fix_strategy": "pray", "confidence": 3}`,
			want: types.Diagnosis{
				ErrorKind: "NameError", ErrorDetail: "name 'os' is not defined",
				RootCause: "x", SuggestedFix: "y",
				Strategy: types.FixManual, Confidence: 1,
			},
			wantOk:     true,
			wantMethod: articulation.MethodBraceSpan,
		},
		{
			name:  "prose only",
			reply: "I think the module is missing.",
			want: types.Diagnosis{
				ErrorKind: "NameError", ErrorDetail: "name 'os' is not defined",
				RootCause: "Failed to parse diagnosis", SuggestedFix: "I think the module is missing.",
				Strategy: types.FixManual, Confidence: 0.4,
			},
		},
		{
			name:  "unparseable confidence",
			reply: `{"root_cause": "x", "confidence": "very"}`,
			want: types.Diagnosis{
				ErrorKind: "NameError", ErrorDetail: "name 'os' is not defined",
				RootCause: "Failed to parse diagnosis", SuggestedFix: `{"root_cause": "x", "confidence": "very"}`,
				Strategy: types.FixManual, Confidence: 0.4,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDiagnosis(tt.reply, "NameError", "name 'os' is not defined")
			if diff := cmp.Diff(tt.want, got.Diagnosis); diff != "" {
				t.Errorf("diagnosis mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.wantOk, got.Ok)
			assert.Equal(t, tt.wantMethod, got.Method)
		})
	}
}

func TestParseDiagnosis_TruncatesRawReply(t *testing.T) {
	reply := strings.Repeat("no json here ", 50)
	got := ParseDiagnosis(reply, "Error", "")
	assert.False(t, got.Ok)
	assert.Len(t, got.Diagnosis.SuggestedFix, 200)
}

func TestDiagnose_GenerationFailure(t *testing.T) {
	gen := perception.NewScriptedClient()
	gen.PushError(errors.New("connection refused"))
	e, _ := newTestEngine(t, gen)

	d := e.Diagnose(context.Background(), types.NewStep(1, "load data"), "IOError", "file missing", "Traceback...")
	assert.Equal(t, types.FixManual, d.Strategy)
	assert.Equal(t, 0.3, d.Confidence)
	assert.Equal(t, "Unable to diagnose: connection refused", d.RootCause)
	assert.Equal(t, "Manual intervention required", d.SuggestedFix)
	assert.Equal(t, "IOError", d.ErrorKind)
}

func TestDiagnose_PublishesEventAndPrompt(t *testing.T) {
	bus := events.NewBus(0)
	defer bus.Close()
	ch, cancel := bus.Subscribe(events.Diagnosis)
	defer cancel()

	gen := perception.NewScriptedClient(`{"root_cause": "bad index", "suggested_fix": "check length", "fix_strategy": "regenerate_code", "confidence": 0.8}`)
	e, _ := newTestEngine(t, gen, WithBus(bus))

	step := types.NewStep(2, "pick the first item")
	step.Code = "items = []\nprint(items[0])"
	p := e.DiagnoseParsed(context.Background(), step, "IndexError", "list index out of range", "Traceback\nIndexError: list index out of range")
	require.True(t, p.Ok)
	assert.Equal(t, "bad index", p.Diagnosis.RootCause)

	prompts := gen.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "Step Description: pick the first item")
	assert.Contains(t, prompts[0], "print(items[0])")
	assert.Contains(t, prompts[0], "Error Type: IndexError")
	assert.Contains(t, prompts[0], "Return only valid JSON")

	select {
	case ev := <-ch:
		assert.Equal(t, 2, ev.Step)
		assert.Equal(t, "Diagnosis: bad index", ev.Message)
		assert.Equal(t, "regenerate_code", ev.Data["fix_strategy"])
	case <-time.After(time.Second):
		t.Fatal("expected diagnosis event")
	}
}

func TestGenerateFix(t *testing.T) {
	gen := perception.NewScriptedClient("```python\nprint('fixed')\n```")
	e, _ := newTestEngine(t, gen)

	step := types.NewStep(1, "greet")
	step.Code = "prnt('hi')"
	diag := types.Diagnosis{RootCause: "typo", SuggestedFix: "use print", Strategy: types.FixRegenerateCode}

	fixed, err := e.GenerateFix(context.Background(), step, diag, 1)
	require.NoError(t, err)
	assert.Equal(t, "```python\nprint('fixed')\n```", fixed, "fix text is returned raw")

	prompt := gen.Prompts()[0]
	assert.Contains(t, prompt, "This is retry attempt 2.")
	assert.Contains(t, prompt, "- Root Cause: typo")
	assert.Contains(t, prompt, "- Fix Strategy: regenerate_code")
	assert.Contains(t, prompt, "Return only the fixed code")
}

func TestGenerateFix_Error(t *testing.T) {
	gen := perception.NewScriptedClient()
	e, _ := newTestEngine(t, gen)

	_, err := e.GenerateFix(context.Background(), types.NewStep(3, "x"), types.Diagnosis{}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, perception.ErrScriptExhausted)
	assert.Contains(t, err.Error(), "step 3")
}

func TestRetryWithFix(t *testing.T) {
	requirePython(t)
	e, tmp := newTestEngine(t, perception.NewScriptedClient())
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		ok, out, err := e.RetryWithFix(ctx, types.NewStep(1, "s"), "print('fixed run')\n", 3)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Contains(t, out, "fixed run")
	})

	t.Run("failure", func(t *testing.T) {
		ok, out, err := e.RetryWithFix(ctx, types.NewStep(1, "s"), "raise KeyError('k')\n", 3)
		assert.False(t, ok)
		require.Error(t, err)
		assert.Contains(t, out, "KeyError")
		assert.Contains(t, err.Error(), "KeyError")
	})

	t.Run("timeout", func(t *testing.T) {
		step := types.NewStep(1, "s")
		step.Timeout = time.Second
		start := time.Now()
		ok, out, err := e.RetryWithFix(ctx, step, "import time\ntime.sleep(30)\n", 3)
		assert.False(t, ok)
		assert.Empty(t, out)
		require.Error(t, err)
		assert.Equal(t, "retry timed out after 1 seconds", err.Error())
		assert.Less(t, time.Since(start), 10*time.Second)
	})

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "fix scripts are always removed")
}
