package model

// Verdict is the classification outcome of one run.
type Verdict int

const (
	// VerdictUndetermined means the stream ended without a definitive
	// outcome. It gates as a failure but is reported separately.
	VerdictUndetermined Verdict = iota
	VerdictPassed
	VerdictFailed
	VerdictBlockedByFixture
	VerdictTimeout
	VerdictError
)

var verdictNames = [...]string{
	VerdictUndetermined:     "undetermined",
	VerdictPassed:           "passed",
	VerdictFailed:           "failed",
	VerdictBlockedByFixture: "blocked",
	VerdictTimeout:          "timeout",
	VerdictError:            "error",
}

func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictNames) {
		return "unknown"
	}
	return verdictNames[v]
}

// OK reports whether the verdict counts as a pass for gating.
func (v Verdict) OK() bool {
	return v == VerdictPassed
}

// Terminal reports whether a harness has reached a final decision.
// Undetermined is the only non-terminal verdict.
func (v Verdict) Terminal() bool {
	return v != VerdictUndetermined
}

// Verdicts returns every verdict in declaration order.
func Verdicts() []Verdict {
	return []Verdict{
		VerdictUndetermined,
		VerdictPassed,
		VerdictFailed,
		VerdictBlockedByFixture,
		VerdictTimeout,
		VerdictError,
	}
}
