package governor

import "fmt"

// GateCheck is one readiness gate measurement: the observed value against
// its threshold.
type GateCheck struct {
	Name      string  `json:"name"`
	Passed    bool    `json:"passed"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
}

// GateReport is a full readiness gate evaluation supplied by the operator
// tooling or the ML telemetry collaborator.
type GateReport struct {
	Checks []GateCheck `json:"checks"`
}

// NewGateReport builds a report from per-gate pass flags with no measured
// values attached. Convenient for operator tooling and tests.
func NewGateReport(passed map[string]bool) GateReport {
	report := GateReport{Checks: make([]GateCheck, 0, len(GateNames))}
	for _, name := range GateNames {
		report.Checks = append(report.Checks, GateCheck{Name: name, Passed: passed[name]})
	}
	return report
}

// Complete verifies the report covers every named gate exactly once.
func (r GateReport) Complete() error {
	seen := map[string]bool{}
	for _, c := range r.Checks {
		if seen[c.Name] {
			return fmt.Errorf("duplicate gate %q in report", c.Name)
		}
		seen[c.Name] = true
	}
	for _, name := range GateNames {
		if !seen[name] {
			return fmt.Errorf("gate report missing %q", name)
		}
	}
	return nil
}

// passedMap flattens the report into the state's gate map.
func (r GateReport) passedMap() map[string]bool {
	out := make(map[string]bool, len(r.Checks))
	for _, c := range r.Checks {
		out[c.Name] = c.Passed
	}
	return out
}

// AllPassed reports whether every check in the report held.
func (r GateReport) AllPassed() bool {
	if len(r.Checks) == 0 {
		return false
	}
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return true
}

// FailedGates lists the names of failed checks in report order.
func (r GateReport) FailedGates() []string {
	var failed []string
	for _, c := range r.Checks {
		if !c.Passed {
			failed = append(failed, c.Name)
		}
	}
	return failed
}
