package fallback

import (
	"regexp"
	"strings"
)

// DefaultLocation is used when no location reference can be extracted.
const DefaultLocation = "HQ-Dallas"

// LocationExtractor pulls a location reference out of free text. It is a
// pluggable strategy so the heuristic can later be swapped for a proper
// parser without touching the responder.
type LocationExtractor interface {
	// Extract returns the location referenced by the message and whether
	// one was found. Callers apply their own default on a miss.
	Extract(message string) (location string, found bool)
}

// knownLocations are matched case-insensitively as substrings, returning
// the original-cased text from the message. The list includes one known
// recurring typo.
var knownLocations = []string{
	"hq-dallas", "lab-austin", "hq-london", "hq-sydney",
	"branch office 1", "branch office 2", "branch office 3", "branch ofice 3",
	"data center 1", "data center 2", "campus a", "campus b",
}

// locationPatterns capture text after prepositions or location keywords.
var locationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:at|in|for)\s+([A-Za-z0-9\-\s]+?)(?:\s|$|\.|\?)`),
	regexp.MustCompile(`(?i)(?:site|office|branch|location)\s+([A-Za-z0-9\-\s]+?)(?:\s|$|\.|\?)`),
}

// extractDenylist rejects common non-location captures from the patterns.
var extractDenylist = map[string]bool{
	"prefixes": true, "prefix": true, "what": true, "show": true,
	"find": true, "me": true, "the": true, "location": true,
}

// HeuristicExtractor is the standard LocationExtractor: known-name
// substring match first, then the capture patterns with a denylist.
type HeuristicExtractor struct{}

// Extract implements LocationExtractor.
func (HeuristicExtractor) Extract(message string) (string, bool) {
	lower := strings.ToLower(message)

	for _, known := range knownLocations {
		idx := strings.Index(lower, known)
		if idx < 0 {
			continue
		}
		// Return the substring in its original casing.
		return message[idx : idx+len(known)], true
	}

	for _, pattern := range locationPatterns {
		for _, match := range pattern.FindAllStringSubmatch(message, -1) {
			candidate := strings.TrimSpace(match[1])
			if candidate == "" || extractDenylist[strings.ToLower(candidate)] {
				continue
			}
			return candidate, true
		}
	}

	return "", false
}

// resolveFormat infers the requested output representation from the
// message. Imperative show/give phrasing on a follow-up defaults to a
// table rather than the raw listing.
func resolveFormat(message string, followUp bool) string {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, "table"):
		return "table"
	case containsAny(lower, "csv", "export", "download", "file"):
		return "csv"
	case containsAny(lower, "dataframe", "analysis", "analyze"):
		return "dataframe"
	case followUp && containsAny(lower, "show", "give", "get", "provide"):
		return "table"
	default:
		return "json"
	}
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
