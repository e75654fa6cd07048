package models

// ConditionValue is one allowed value of a condition type.
type ConditionValue struct {
	Value    string  `json:"value"`
	Impact   float64 `json:"impact"`
	Severity int     `json:"severity"`
}

// ConditionType lists the values of one condition type.
type ConditionType struct {
	Type   string           `json:"type"`
	Values []ConditionValue `json:"values"`
}

// ConditionCatalog is the body of GET /v1/metadata/conditions.
type ConditionCatalog struct {
	Types []ConditionType `json:"types"`

	// AutoWeather is the weather value that triggers a lookup.
	AutoWeather string `json:"autoWeather"`
}
