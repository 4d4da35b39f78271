package viewer

import (
	"regexp"
	"strconv"
	"strings"

	"contract-lens/internal/domain"
)

// Citations come from the AI layer and are free-form: "page=3", "Page 3",
// "#section=5", or anything else the model decided to write. Parsing is
// defensive; a reference that matches nothing degrades to an anchor key and
// ultimately to a no-op, never to an error.

var pageRefPattern = regexp.MustCompile(`(?i)\bpage\s*=?\s*(\d+)`)

// ParseLocation normalizes a citation string into either a 1-based page
// index or an anchor key.
func ParseLocation(ref string) domain.Location {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Location{}
	}

	if m := pageRefPattern.FindStringSubmatch(ref); m != nil {
		if num, err := strconv.Atoi(m[1]); err == nil && num >= 1 {
			return domain.Location{Page: num}
		}
	}

	return domain.Location{Anchor: strings.TrimPrefix(ref, "#")}
}
