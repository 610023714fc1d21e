package classify

import "fmt"

// ReasonKind tags a structured reason variant. Presentation layers render
// kinds generically; the core never emits free text beyond the fixed
// templates below.
type ReasonKind string

const (
	ReasonSmartMoneyRatio  ReasonKind = "smart_money_ratio"
	ReasonNetFlow          ReasonKind = "net_flow"
	ReasonNewPositions     ReasonKind = "new_positions"
	ReasonInsufficientData ReasonKind = "insufficient_data"
)

// Reason is a tagged explanation variant with the numeric parameters the
// template for its kind needs. Unused parameters stay zero.
type Reason struct {
	Kind         ReasonKind `json:"kind"`
	State        State      `json:"state,omitempty"`
	Accumulating int        `json:"accumulating,omitempty"`
	Distributing int        `json:"distributing,omitempty"`
	NetFlowUSD   float64    `json:"net_flow_usd,omitempty"`
	NewPositions int        `json:"new_positions,omitempty"`
}

// Render produces the fixed template text for the reason. Output depends
// only on the reason fields.
func (r Reason) Render() string {
	switch r.Kind {
	case ReasonSmartMoneyRatio:
		if r.Accumulating >= r.Distributing {
			return fmt.Sprintf("%d smart money wallets accumulating vs %d distributing", r.Accumulating, r.Distributing)
		}
		return fmt.Sprintf("%d smart money wallets distributing vs %d accumulating", r.Distributing, r.Accumulating)
	case ReasonNetFlow:
		if r.NetFlowUSD >= 0 {
			return fmt.Sprintf("net inflow of $%.1fM over the window", r.NetFlowUSD/1e6)
		}
		return fmt.Sprintf("net outflow of $%.1fM over the window", -r.NetFlowUSD/1e6)
	case ReasonNewPositions:
		return fmt.Sprintf("%d new positions opened this window", r.NewPositions)
	case ReasonInsufficientData:
		return "insufficient signal data, defaulting to neutral"
	default:
		return string(r.Kind)
	}
}
