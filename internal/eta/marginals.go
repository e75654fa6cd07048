package eta

// Marginals are coarse labels derived from a multiplier for display.
type Marginals struct {
	Traffic    string
	Conditions string
	RouteBias  string
}

// MarginalsFor labels a multiplier.
func MarginalsFor(multiplier float64) Marginals {
	switch {
	case multiplier < 1.2:
		return Marginals{Traffic: "light", Conditions: "good", RouteBias: "shortest"}
	case multiplier < 1.6:
		return Marginals{Traffic: "moderate", Conditions: "mixed", RouteBias: "balanced"}
	default:
		return Marginals{Traffic: "heavy", Conditions: "bad", RouteBias: "fastest"}
	}
}
