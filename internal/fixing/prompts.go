package fixing

import (
	"fmt"

	"spectral/internal/types"
)

func codeOrPlaceholder(step *types.Step) string {
	if step.Code == "" {
		return "No code provided"
	}
	return step.Code
}

// DiagnosisPrompt builds the request for a JSON diagnosis of a failure.
func DiagnosisPrompt(step *types.Step, kind, detail, output string) string {
	return fmt.Sprintf(`Analyze this code execution failure and provide a detailed diagnosis.

Step Description: %s

Original Code:
`+"```python\n%s\n```"+`

Error Type: %s

Error Details:
%s

Full Output:
%s

Provide your diagnosis in this JSON format:
{
  "root_cause": "Clear explanation of what went wrong",
  "suggested_fix": "Specific fix to apply",
  "fix_strategy": "one of: regenerate_code, add_retry_logic, install_package, adjust_parameters, or manual",
  "confidence": 0.0 to 1.0
}

Common fix strategies:
- regenerate_code: Rewrite the code to fix bugs
- add_retry_logic: Add retry logic with backoff
- install_package: Install missing dependencies
- adjust_parameters: Change parameters or configuration
- manual: Requires human intervention

Return only valid JSON, no other text.`,
		step.Description, codeOrPlaceholder(step), kind, detail, truncate(output, 1000))
}

// FixPrompt builds the request for corrected code.
func FixPrompt(step *types.Step, diag types.Diagnosis, retry int) string {
	return fmt.Sprintf(`Generate fixed code for this failed step.

Step Description: %s

Original Code:
`+"```python\n%s\n```"+`

Diagnosis:
- Root Cause: %s
- Suggested Fix: %s
- Fix Strategy: %s

This is retry attempt %d.

Requirements:
1. Fix the issue identified in the diagnosis
2. Follow the suggested fix strategy
3. Add better error handling
4. Return only the code, no explanations or markdown formatting
5. Ensure the code is complete and executable

Return only the fixed code, no other text.`,
		step.Description, codeOrPlaceholder(step), diag.RootCause, diag.SuggestedFix, diag.Strategy, retry+1)
}
