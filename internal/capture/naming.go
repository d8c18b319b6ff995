package capture

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rodrigo/nfse-collector/internal/types"
)

// maxSuggestedNameLen rejects absurdly long server-suggested file names.
const maxSuggestedNameLen = 200

// DeriveFileName picks the output file name for an artifact.
//
// Policy: a suggested name (from Content-Disposition) is reused when it is
// present, of sane length and recognizable; its stem is kept and the sniffed
// extension appended. Otherwise the document key — the trailing path segment
// of the href — is used, and as a last resort a timestamp-based name.
func DeriveFileName(suggested, href string, kind types.ArtifactKind) string {
	if usableSuggestedName(suggested) {
		stem := strings.TrimSuffix(suggested, filepath.Ext(suggested))
		return SanitizeFileName(stem + kind.Extension())
	}

	if key := documentKey(href); key != "" {
		return SanitizeFileName(key + kind.Extension())
	}

	return fmt.Sprintf("document_%d%s", time.Now().Unix(), kind.Extension())
}

func usableSuggestedName(name string) bool {
	if name == "" || len(name) > maxSuggestedNameLen {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml", ".pdf", ".bin":
		return true
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return true
		}
	}
	return false
}

// documentKey extracts the trailing path segment of a download href,
// ignoring any query string.
func documentKey(href string) string {
	if href == "" {
		return ""
	}
	if u, err := url.Parse(href); err == nil {
		href = u.Path
	}
	key := path.Base(strings.TrimSuffix(href, "/"))
	if key == "." || key == "/" {
		return ""
	}
	return key
}

// RunDir derives the root directory for one run's output:
// {base}/{MM-YYYY}/{sanitized company}.
func RunDir(base, period, company string) string {
	folder := SanitizeFolderName(company)
	if folder == "" {
		folder = "unknown"
	}
	return filepath.Join(base, PeriodFolder(period), folder)
}

// OutputDir derives the directory an artifact is written into:
// {base}/{MM-YYYY}/{sanitized company}/{Issued|Received}.
func OutputDir(base, period, company string, dir types.Direction) string {
	return filepath.Join(RunDir(base, period, company), dir.Folder())
}
