package sandbox

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"spectral/internal/world"
)

// guiModules are top-level toolkit packages, lowercased.
var guiModules = []string{
	"tkinter",
	"customtkinter",
	"pyqt5",
	"pyqt6",
	"pyside2",
	"pyside6",
	"pygame",
	"kivy",
	"wx",
}

var importRe = regexp.MustCompile(`(?m)^[ \t]*(?:from[ \t]+([\w.]+)[ \t]+import\b|import[ \t]+([\w., \t]+?)[ \t]*(?:[#;].*)?$)`)

// blockingLoopSignatures start an event loop that never returns on its own.
var blockingLoopSignatures = []string{
	"mainloop()",
	"app.run()",
	"exec_()",
	"app.exec()",
	"pygame.event.wait()",
}

// DualModeEntryNames are the accepted names for a GUI construction function
// that takes a test_mode parameter.
var DualModeEntryNames = []string{"create_app", "build", "build_ui", "make_app"}

// IsGUIProgram reports whether code imports a known GUI toolkit, either
// with `import pkg` or `from pkg import ...`.
func IsGUIProgram(code string) bool {
	for _, m := range importRe.FindAllStringSubmatch(code, -1) {
		mods := []string{m[1]}
		if m[1] == "" {
			mods = strings.Split(m[2], ",")
		}
		for _, mod := range mods {
			name := strings.Fields(mod)
			if len(name) == 0 {
				continue
			}
			root, _, _ := strings.Cut(name[0], ".")
			if slices.Contains(guiModules, strings.ToLower(root)) {
				return true
			}
		}
	}
	return false
}

// DetectBlockingGUICall returns the first event-loop pattern found in code.
func DetectBlockingGUICall(code string) (string, bool) {
	for _, sig := range blockingLoopSignatures {
		if strings.Contains(code, sig) {
			return sig, true
		}
	}
	return "", false
}

// HasDualModeEntry reports whether code defines a top-level construction
// function with a test_mode parameter.
func HasDualModeEntry(ctx context.Context, code string) bool {
	src, err := world.ParsePython(ctx, []byte(code))
	if err != nil {
		return false
	}
	defer src.Close()
	for _, fn := range src.Functions() {
		if fn.TopLevel && slices.Contains(DualModeEntryNames, fn.Name) && slices.Contains(fn.Params, "test_mode") {
			return true
		}
	}
	return false
}
