package resource

import (
	"regexp"
	"strings"
)

var (
	invalidNameChars = regexp.MustCompile(`[^a-z0-9\-.]`)
	repeatedDashes   = regexp.MustCompile(`-{2,}`)
)

// Name builds a hostname-safe resource name from the given parts,
// usually the process id, the owning scope, and a caller-chosen
// suffix. Names are limited to 63 characters; when truncating, the
// final part is kept, since that is what distinguishes the resources
// of one test from each other.
func Name(parts ...string) string {
	name := strings.ToLower(strings.Join(parts, "-"))
	name = invalidNameChars.ReplaceAllString(name, "-")
	name = repeatedDashes.ReplaceAllString(name, "-")

	if len(name) > 63 {
		suffix := ""
		if n := len(parts); n > 0 {
			suffix = strings.ToLower(parts[n-1])
		}

		if suffix != "" && len(suffix) < 62 {
			name = name[:63-len(suffix)-1] + "-" + suffix
		} else {
			name = name[:63]
		}
	}

	return strings.Trim(name, "-")
}
