package capture

import (
	"bytes"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/rodrigo/nfse-collector/internal/types"
)

// Classify determines the artifact kind from the fetched bytes and the
// response content-type. Magic bytes win over the header: a payload starting
// with %PDF is a PDF no matter what the portal claims, and the structured
// format always starts with an XML declaration or tag. When both are
// inconclusive the header is consulted, then a library sniff, then the
// generic binary fallback.
func Classify(contentType string, data []byte) types.ArtifactKind {
	head := bytes.TrimLeft(data, " \t\r\n")
	switch {
	case bytes.HasPrefix(head, []byte("%PDF")):
		return types.ArtifactPDF
	case bytes.HasPrefix(head, []byte("<?xml")), bytes.HasPrefix(head, []byte("<")):
		return types.ArtifactXML
	}

	lower := strings.ToLower(contentType)
	switch {
	case strings.Contains(lower, "xml"):
		return types.ArtifactXML
	case strings.Contains(lower, "pdf"):
		return types.ArtifactPDF
	}

	detected := mimetype.Detect(data)
	switch {
	case detected.Is("application/pdf"):
		return types.ArtifactPDF
	case detected.Is("text/xml") || detected.Is("application/xml"):
		return types.ArtifactXML
	}

	return types.ArtifactBinary
}
