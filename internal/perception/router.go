// Package perception turns a raw request into something the orchestrator can
// act on: an execution mode from keyword scoring, and the text-generation
// clients that answer prompts.
package perception

import (
	"strings"

	"spectral/internal/logging"
	"spectral/internal/types"
)

// =============================================================================
// KEYWORD TABLES
// =============================================================================

var directKeywords = map[string]bool{
	"write": true, "code": true, "program": true, "script": true, "run": true,
	"execute": true, "create": true, "generate": true, "build": true, "make": true,
	"implement": true, "develop": true, "search": true,
}

var planningKeywords = map[string]bool{
	"with": true, "and": true, "then": true, "also": true, "including": true,
	"plus": true, "multi": true, "step": true, "phase": true, "stage": true,
	"pipeline": true, "workflow": true, "system": true, "framework": true,
	"application": true, "platform": true, "architecture": true, "setup": true,
	"configure": true, "deploy": true, "integrate": true, "connect": true,
	"chain": true,
}

// complexityPhrases are matched as substrings of the whole request.
var complexityPhrases = []string{
	"error handling", "logging", "testing", "validation", "authentication",
	"database", "api", "web", "server", "client", "frontend", "backend",
	"scraper", "parser", "processor", "manager", "controller", "service",
}

// researchPhrases are matched as substrings of the whole request.
var researchPhrases = []string{
	"how do i", "how to", "what is", "what does", "does it support", "can i",
	"install", "set up", "configure", "error", "problem", "issue",
	"troubleshoot", "fix", "solve", "find out", "learn", "understand",
	"explain", "guide", "tutorial",
}

var questionStarts = []string{"how", "what", "why", "when", "where", "can", "does", "is"}

var errorVocabulary = []string{"error", "failed", "exception", "traceback"}

var conjunctions = map[string]bool{
	"and": true, "with": true, "then": true, "also": true, "plus": true, "including": true,
}

// =============================================================================
// ROUTER
// =============================================================================

// Scores holds the per-mode totals behind a classification.
type Scores struct {
	Direct   float64
	Planning float64
	Research float64
}

// Router classifies requests by weighted keyword scoring. It holds no state
// and is safe for concurrent use.
type Router struct {
	// ResearchThreshold is the research score at which research modes win.
	ResearchThreshold float64

	// ModeConfidence is the minimum confidence for IsDirect and IsPlanning.
	ModeConfidence float64
}

// NewRouter returns a router with the standard thresholds.
func NewRouter() *Router {
	return &Router{ResearchThreshold: 0.9, ModeConfidence: 0.6}
}

// Score computes the raw per-mode scores for request.
func (r *Router) Score(request string) Scores {
	lower := strings.ToLower(strings.TrimSpace(request))
	words := strings.Fields(lower)

	var s Scores
	for _, phrase := range researchPhrases {
		if strings.Contains(lower, phrase) {
			s.Research += 0.8
		}
	}
	for _, q := range questionStarts {
		if strings.HasPrefix(lower, q) {
			s.Research += 0.6
			break
		}
	}
	if strings.Contains(lower, "?") {
		s.Research += 0.3
	}
	if containsAny(lower, errorVocabulary) {
		s.Research += 0.6
	}

	var conj int
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()")
		if directKeywords[w] {
			s.Direct += 0.3
		}
		if planningKeywords[w] {
			s.Planning += 0.4
		}
		if conjunctions[w] {
			conj++
		}
	}
	for _, phrase := range complexityPhrases {
		if strings.Contains(lower, phrase) {
			s.Planning += 0.5
		}
	}

	switch n := len(words); {
	case n > 15:
		s.Planning += 0.2
	case n > 10:
		s.Planning += 0.1
	}
	if conj >= 2 {
		s.Planning += 0.3
	}
	return s
}

// Classify returns the execution mode for request and a confidence in [0,1].
// An exact tie between planning and direct resolves to planning.
func (r *Router) Classify(request string) (types.ExecutionMode, float64) {
	s := r.Score(request)

	var mode types.ExecutionMode
	var confidence float64
	switch {
	case s.Research >= r.ResearchThreshold:
		mode = types.ModeResearch
		if s.Direct > 0.5 || s.Planning > 0.5 {
			mode = types.ModeResearchAndAct
		}
		confidence = min(0.95, 0.6+s.Research*0.2)
	case s.Planning > s.Direct && s.Planning > s.Research:
		mode = types.ModePlanning
		confidence = min(0.95, 0.5+(s.Planning-s.Direct)*0.3)
	case s.Direct > s.Planning && s.Direct > s.Research:
		mode = types.ModeDirect
		confidence = min(0.95, 0.5+(s.Direct-s.Planning)*0.3)
	default:
		mode = types.ModePlanning
		confidence = 0.5
	}

	logging.Router("Classified as %s mode with confidence %.2f", mode, confidence)
	logging.RouterDebug("Scores - Direct: %.2f, Planning: %.2f, Research: %.2f", s.Direct, s.Planning, s.Research)
	return mode, confidence
}

// IsDirect reports a confident direct classification.
func (r *Router) IsDirect(request string) bool {
	mode, conf := r.Classify(request)
	return mode == types.ModeDirect && conf >= r.ModeConfidence
}

// IsPlanning reports a confident planning classification.
func (r *Router) IsPlanning(request string) bool {
	mode, conf := r.Classify(request)
	return mode == types.ModePlanning && conf >= r.ModeConfidence
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
