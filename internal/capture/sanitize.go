package capture

import (
	"regexp"
	"strings"
)

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	folderDisallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
)

// SanitizeFileName strips characters illegal in file names and collapses
// whitespace into underscores. Idempotent.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = invalidFileChars.ReplaceAllString(name, "_")
	name = whitespaceRun.ReplaceAllString(name, "_")
	return name
}

// SanitizeFolderName keeps only letters, digits, underscore, hyphen and
// single spaces, for use as a directory segment. Idempotent.
func SanitizeFolderName(name string) string {
	name = strings.TrimSpace(name)
	name = folderDisallowed.ReplaceAllString(name, "")
	name = whitespaceRun.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

// PeriodFolder formats an accounting period for use as a directory segment:
// "11/2025" becomes "11-2025".
func PeriodFolder(period string) string {
	return strings.ReplaceAll(period, "/", "-")
}
