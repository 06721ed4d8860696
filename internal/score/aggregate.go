package score

import (
	"math"

	"github.com/sells-group/provider-verify/internal/model"
)

// fieldWeights is the fixed weight table for the correctness score. Fields
// outside this set are never scored or reported. Total weight: 8.
var fieldWeights = []struct {
	field  string
	weight float64
}{
	{"name", 2},
	{"phone", 1.5},
	{"address_line1", 1.5},
	{"city", 1},
	{"state", 1},
	{"postal_code", 1},
	{"specialty", 1},
}

// Correctness scores every weighted field of the user data against the
// registry record and returns the overall percentage (0-100, rounded to the
// nearest integer) plus the per-field breakdown. Pure function: identical
// inputs always produce identical output, and it never fails.
func Correctness(user model.UserProviderData, registry model.NormalizedProvider) (int, map[string]model.FieldScore) {
	fieldScores := make(map[string]model.FieldScore, len(fieldWeights))

	var totalWeight, totalScore float64
	for _, fw := range fieldWeights {
		userValue := user.FieldValue(fw.field)
		registryValue := registry.FieldValue(fw.field)
		s := Field(userValue, registryValue, fw.field == "phone")

		fieldScores[fw.field] = model.FieldScore{
			Score:         s,
			UserValue:     userValue,
			RegistryValue: registryValue,
			Status:        model.StatusForScore(s),
		}

		totalWeight += fw.weight
		totalScore += s * fw.weight
	}

	return int(math.Round(totalScore / totalWeight * 100)), fieldScores
}
