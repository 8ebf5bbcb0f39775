package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// The AI boundary is a trust boundary: every control value coming back from
// the model is parsed against an explicit grammar with a safe default on
// mismatch. Nothing here assumes well-formed output.

const noneSentinel = "NONE"

var (
	bulletPrefix = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)
	bareInteger  = regexp.MustCompile(`^\d+$`)
	anyInteger   = regexp.MustCompile(`\d+`)
)

// parseHeadlines turns a newline-delimited model reply into a clean headline
// list: bullets and numbering stripped, blanks and fragments dropped.
func parseHeadlines(reply string) []string {
	var headlines []string
	for _, line := range strings.Split(reply, "\n") {
		line = bulletPrefix.ReplaceAllString(line, "")
		line = strings.Trim(line, ` "'`)
		if len(line) < 4 {
			continue
		}
		headlines = append(headlines, line)
	}
	return headlines
}

// parseContainerIndex enforces the strict grammar for container matching: a
// bare integer or the literal NONE. Anything else is treated as unmatched.
func parseContainerIndex(reply string) (int, bool) {
	reply = strings.TrimSpace(reply)
	if strings.EqualFold(reply, noneSentinel) {
		return 0, false
	}

	if !bareInteger.MatchString(reply) {
		return 0, false
	}

	idx, err := strconv.Atoi(reply)
	if err != nil {
		return 0, false
	}

	return idx, true
}

// parseIndexList parses the URL-triage reply: comma-separated 1-based
// indexes, or NONE. ok=false signals an off-grammar reply, which callers
// treat as "triage unavailable" rather than dropping candidates.
func parseIndexList(reply string, n int) (indexes []int, ok bool) {
	reply = strings.TrimSpace(reply)
	if strings.EqualFold(reply, noneSentinel) {
		return nil, true
	}

	matches := anyInteger.FindAllString(reply, -1)
	if len(matches) == 0 {
		return nil, false
	}

	for _, m := range matches {
		idx, err := strconv.Atoi(m)
		if err != nil || idx < 1 || idx > n {
			continue
		}
		indexes = append(indexes, idx)
	}

	if len(indexes) == 0 {
		return nil, false
	}

	return indexes, true
}
