package model

// FieldStatus is the three-way classification of a scored field.
type FieldStatus string

const (
	FieldMatch    FieldStatus = "match"
	FieldPartial  FieldStatus = "partial"
	FieldMismatch FieldStatus = "mismatch"
)

// StatusForScore derives the field status from a similarity score.
// The mapping is total: 1 -> match, 0.5 -> partial, anything else -> mismatch.
func StatusForScore(score float64) FieldStatus {
	switch score {
	case 1:
		return FieldMatch
	case 0.5:
		return FieldPartial
	default:
		return FieldMismatch
	}
}

// FieldScore is one scored comparison between a user value and a registry value.
type FieldScore struct {
	Score         float64     `json:"score"`
	UserValue     string      `json:"userValue"`
	RegistryValue string      `json:"registryValue"`
	Status        FieldStatus `json:"status"`
}

// ValidationResult is the aggregate outcome of validating user data against
// a registry. It is constructed once per request and never mutated after
// being returned.
type ValidationResult struct {
	Success          bool                  `json:"success"`
	Found            bool                  `json:"found"`
	Message          string                `json:"message,omitempty"`
	RegistryData     *NormalizedProvider   `json:"registryData,omitempty"`
	UserData         UserProviderData      `json:"userData"`
	CorrectnessScore int                   `json:"correctnessScore"`
	FieldScores      map[string]FieldScore `json:"fieldScores,omitempty"`
}
