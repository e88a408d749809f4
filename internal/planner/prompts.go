package planner

import "fmt"

// BreakdownPrompt asks for the step-breakdown JSON document.
func BreakdownPrompt(request string) string {
	return fmt.Sprintf(`Break down this request into logical code execution steps:

%s

Requirements:
1. Identify all necessary steps (setup, implementation, testing, etc.)
2. Specify dependencies between steps
3. For steps that require code execution, describe what the code should do
4. For informational steps (like "prepare", "format"), mark them accordingly

Respond with valid JSON:
{
  "steps": [
    {
      "step_number": 1,
      "description": "Clear description of what this step does",
      "code_needed": true,
      "is_code_execution": true,
      "validation_method": "output_pattern" | "file_exists" | "syntax_check" | "manual",
      "expected_output_pattern": "regex pattern (if validation_method is output_pattern)",
      "dependencies": [],
      "timeout_seconds": 30,
      "max_retries": 3
    }
  ]
}

Notes:
- Steps should be in logical order
- Dependencies should reference earlier step numbers only
- Informational steps (prepare, format, reply) should have is_code_execution=false
- Code steps should have is_code_execution=true

Return only valid JSON, no other text.`, request)
}
