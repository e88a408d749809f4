package sandbox

import (
	"fmt"
	"path/filepath"
	"strings"
)

// GenerateBasicTest returns a pytest module that imports code/<filename>
// without running its __main__ block and checks that it compiles.
func GenerateBasicTest(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	ident := strings.Map(func(r rune) rune {
		if r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9') {
			return r
		}
		return '_'
	}, stem)

	return fmt.Sprintf(`import importlib.util
import os

import pytest

PROGRAM = os.path.join(os.path.dirname(os.path.abspath(__file__)), "..", "code", %[1]q)


def test_import_%[2]s():
    """%[3]s can be imported without errors."""
    spec = importlib.util.spec_from_file_location(%[3]q, PROGRAM)
    module = importlib.util.module_from_spec(spec)
    try:
        spec.loader.exec_module(module)
    except ImportError as e:
        pytest.fail(f"Failed to import %[3]s: {e}")


def test_syntax_valid():
    """%[1]s compiles."""
    with open(PROGRAM, "r", encoding="utf-8") as f:
        source = f.read()
    try:
        compile(source, %[1]q, "exec")
    except SyntaxError as e:
        pytest.fail(f"Syntax error in %[1]s: {e}")
`, filename, ident, stem)
}
