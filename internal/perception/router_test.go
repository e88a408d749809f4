package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"spectral/internal/types"
)

func TestRouterClassify(t *testing.T) {
	r := NewRouter()

	tests := []struct {
		name     string
		request  string
		wantMode types.ExecutionMode
		wantConf float64
	}{
		{"simple code request", "write a python script", types.ModeDirect, 0.68},
		{"multi clause system", "build a web server with authentication and database then deploy it", types.ModePlanning, 0.95},
		{"question", "how do i install numpy?", types.ModeResearch, 0.95},
		{"question with action", "how to write and run a script with tests", types.ModeResearchAndAct, 0.88},
		{"no signal ties to planning", "hello there", types.ModePlanning, 0.5},
		{"weak direct", "make it", types.ModeDirect, 0.59},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, conf := r.Classify(tt.request)
			assert.Equal(t, tt.wantMode, mode)
			assert.InDelta(t, tt.wantConf, conf, 0.001)
		})
	}
}

func TestRouterScore(t *testing.T) {
	r := NewRouter()

	s := r.Score("Write code, then run it.")
	assert.InDelta(t, 0.9, s.Direct, 0.001, "punctuation is trimmed from keywords")
	assert.InDelta(t, 0.4, s.Planning, 0.001)
	assert.Zero(t, s.Research)

	long := r.Score("one two three four five six seven eight nine ten eleven twelve thirteen fourteen fifteen sixteen")
	assert.InDelta(t, 0.2, long.Planning, 0.001)

	medium := r.Score("one two three four five six seven eight nine ten eleven")
	assert.InDelta(t, 0.1, medium.Planning, 0.001)

	errs := r.Score("the job failed")
	assert.InDelta(t, 0.6, errs.Research, 0.001)
}

func TestRouterConfidenceBounds(t *testing.T) {
	r := NewRouter()
	requests := []string{
		"",
		"?",
		"what is the error in this traceback? how to fix the exception? explain the problem",
		"create and build and make and generate and write with then also plus including a web api server client database",
	}
	for _, req := range requests {
		_, conf := r.Classify(req)
		assert.GreaterOrEqual(t, conf, 0.0)
		assert.LessOrEqual(t, conf, 0.95)
	}
}

func TestRouterModeHelpers(t *testing.T) {
	r := NewRouter()

	assert.True(t, r.IsDirect("write a python script"))
	assert.False(t, r.IsDirect("make it"), "below the confidence floor")
	assert.False(t, r.IsPlanning("hello there"), "a tie is planning at 0.5")
	assert.True(t, r.IsPlanning("build a web server with authentication and database then deploy it"))
}
