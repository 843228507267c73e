package attachment

import "strings"

// SanitizeFileName makes name safe to use as an attachment filename. Path
// separators, characters reserved on common filesystems and control
// characters become "_". Surrounding spaces and trailing dots are trimmed,
// and the names "." and ".." are replaced. A blank name stays absent.
func SanitizeFileName(name string) string {
	if strings.TrimSpace(name) == "" {
		return ""
	}

	mapped := strings.Map(func(r rune) rune {
		switch {
		case r < 0x20 || r == 0x7f:
			return '_'
		case strings.ContainsRune(`/\:*?"<>|`, r):
			return '_'
		}
		return r
	}, name)

	mapped = strings.TrimSpace(mapped)
	mapped = strings.TrimRight(mapped, ". ")
	if mapped == "" {
		return "_"
	}
	return mapped
}
