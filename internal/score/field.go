// Package score compares user-entered provider fields against canonical
// registry values and aggregates the results into one correctness percentage.
package score

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/provider-verify/internal/normalize"
)

// similarityThreshold is the cutoff for the character-overlap fallback.
const similarityThreshold = 0.8

// Field computes the similarity score between a user value and a registry
// value. Scores are confined to {0, 0.5, 1}:
//
//	0    either side is empty after normalization, or no useful overlap
//	1    normalized values are exactly equal
//	0.5  one value is a substring of the other, or the character-overlap
//	     similarity exceeds 0.8
//
// The overlap fallback is a coarse bag-of-characters heuristic, kept cheap
// so it tolerates formatting drift without pretending to be edit distance.
func Field(userValue, registryValue string, phone bool) float64 {
	var user, registry string
	if phone {
		user = normalize.Phone(userValue)
		registry = normalize.Phone(registryValue)
	} else {
		user = normalize.Address(userValue)
		registry = normalize.Address(registryValue)
	}

	if user == "" || registry == "" {
		return 0
	}
	if user == registry {
		return 1
	}
	if strings.Contains(user, registry) || strings.Contains(registry, user) {
		return 0.5
	}

	longer, shorter := registry, user
	if utf8.RuneCountInString(user) > utf8.RuneCountInString(registry) {
		longer, shorter = user, registry
	}

	matches := 0
	for _, r := range shorter {
		if strings.ContainsRune(longer, r) {
			matches++
		}
	}

	similarity := float64(matches) / float64(utf8.RuneCountInString(longer))
	if similarity > similarityThreshold {
		return 0.5
	}
	return 0
}
