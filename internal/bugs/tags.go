package bugs

import (
	"fmt"
	"regexp"
	"strings"
)

// Launchpad tags are lowercase and may not start with a dash.
var tagRe = regexp.MustCompile(`^[a-z0-9][a-z0-9+.\-]*$`)

// ParseTags splits a space separated tag list.
func ParseTags(value string) []string {
	return strings.Fields(value)
}

// NormalizeTags lowercases, validates and de-duplicates tags keeping their order.
func NormalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if !tagRe.MatchString(tag) {
			return nil, fmt.Errorf("%w: invalid tag %q", ErrInvalidInput, raw)
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out, nil
}
