package learner

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/abhisek/tutord/internal/errs"
)

// NormalizeTopic returns the canonical form of a topic name: Unicode
// compatibility-normalized, case-folded, with each run of whitespace, hyphens
// and underscores collapsed to a single underscore. "Long  Division",
// "long-division" and "LONG_DIVISION" all map to "long_division".
func NormalizeTopic(name string) (string, error) {
	folded := cases.Fold().String(norm.NFKC.String(name))
	parts := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	if len(parts) == 0 {
		return "", errs.InvalidInput("topic name %q is empty", name)
	}
	return strings.Join(parts, "_"), nil
}

// NormalizeTopics canonicalizes names, dropping duplicates while keeping the
// first occurrence order.
func NormalizeTopics(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		topic, err := NormalizeTopic(n)
		if err != nil {
			return nil, err
		}
		if !seen[topic] {
			seen[topic] = true
			out = append(out, topic)
		}
	}
	return out, nil
}

// ValidateLearnerID trims id and rejects empty identifiers. Learner IDs are
// opaque and otherwise case-sensitive.
func ValidateLearnerID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errs.InvalidInput("learner id is empty")
	}
	return id, nil
}
