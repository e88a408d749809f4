package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsGUIProgram(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"tkinter alias", "import tkinter as tk", true},
		{"from submodule", "from PyQt5.QtWidgets import QApplication", true},
		{"customtkinter", "import customtkinter", true},
		{"indented import", "def main():\n    import pygame\n", true},
		{"import list", "import os, wx  # toolkit", true},
		{"import then statement", "import kivy; kivy.require('2.0')", true},
		{"no toolkit", "import os\nprint(os.getcwd())", false},
		{"identifier contains wx", "def selectKey(wxyz):\n    return wxyz\n", false},
		{"identifier contains ctk", "ctk_count = 3\nprint(ctk_count)\n", false},
		{"toolkit only in a string", "print('install tkinter first')", false},
		{"similar module name", "import wxconfig\nimport pygamer\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGUIProgram(tt.code))
		})
	}
}

func TestDetectBlockingGUICall(t *testing.T) {
	sig, ok := DetectBlockingGUICall("root = tk.Tk()\nroot.mainloop()\n")
	assert.True(t, ok)
	assert.Equal(t, "mainloop()", sig)

	_, ok = DetectBlockingGUICall("app = QApplication([])\nsys.exit(app.exec())\n")
	assert.True(t, ok)

	_, ok = DetectBlockingGUICall("print('no loop')\n")
	assert.False(t, ok)
}

func TestHasDualModeEntry(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"create_app", "def create_app(test_mode=False):\n    pass\n", true},
		{"build_ui typed", "def build_ui(root, test_mode: bool = False):\n    pass\n", true},
		{"wrong name", "def main(test_mode=False):\n    pass\n", false},
		{"no param", "def create_app():\n    pass\n", false},
		{"method only", "class A:\n    def build(self, test_mode=False):\n        pass\n", false},
		{"decorated", "@cache\ndef make_app(test_mode=True):\n    pass\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasDualModeEntry(ctx, tt.code))
		})
	}
}
