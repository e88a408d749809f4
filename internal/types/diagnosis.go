package types

// FixStrategy tags the kind of remedy a diagnosis proposes.
type FixStrategy string

const (
	FixRegenerateCode   FixStrategy = "regenerate_code"
	FixAddRetryLogic    FixStrategy = "add_retry_logic"
	FixInstallPackage   FixStrategy = "install_package"
	FixAdjustParameters FixStrategy = "adjust_parameters"
	FixManual           FixStrategy = "manual"
)

// ParseFixStrategy maps unknown tags to manual.
func ParseFixStrategy(s string) FixStrategy {
	switch FixStrategy(s) {
	case FixRegenerateCode, FixAddRetryLogic, FixInstallPackage, FixAdjustParameters, FixManual:
		return FixStrategy(s)
	}
	return FixManual
}

// Diagnosis explains one failed attempt. It lives only for the retry loop.
type Diagnosis struct {
	ErrorKind    string      `json:"error_type"`
	ErrorDetail  string      `json:"error_details"`
	RootCause    string      `json:"root_cause"`
	SuggestedFix string      `json:"suggested_fix"`
	Strategy     FixStrategy `json:"fix_strategy"`
	Confidence   float64     `json:"confidence"`
}

// ClampConfidence forces a confidence into [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	}
	return c
}
