package articulation

import (
	"fmt"
	"strings"
)

// DirectCodePrompt asks for a single complete program for request.
func DirectCodePrompt(request string, wantsGUI bool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a Python script that does the following:\n\n%s\n\n", request)
	sb.WriteString(`Requirements:
- Write complete, executable code
- Include proper error handling
- Add comments explaining the code
- For interactive programs use input() and print(), not dialog boxes
- Prefer prompts of the form input("Enter value: ")
`)
	if wantsGUI {
		sb.WriteString(`- GUI programs must not create or show windows at import time
- Expose create_app(test_mode=False) that builds the UI and returns it
- When test_mode is true, never start the event loop
- Start the main loop only under if __name__ == "__main__":
`)
	} else {
		sb.WriteString("- This is a command-line program: do not start any GUI event loop (no mainloop(), no app.run())\n")
	}
	sb.WriteString("\nReturn only code, no markdown formatting, no explanations.")
	return sb.String()
}

// StepCodePrompt asks for the code implementing one step of a larger request.
func StepCodePrompt(stepDescription, request string) string {
	return fmt.Sprintf(`Write Python code to accomplish this step:

Step Description: %s

Original Request: %s

Requirements:
- Write complete, runnable code for this step only
- Print progress so the result can be checked from the output
- Do not start any GUI event loop

Return only code, no markdown formatting, no explanations.`, stepDescription, request)
}
