// Package knowledge answers regulatory questions from scraped pages and an
// embedded passage index.
package knowledge

import "strings"

// DefaultSource is the key used for documents without a source.
const DefaultSource = "internal"

var sourceKeys = map[string]string{
	"Annex 1":  "annex1",
	"ISO":      "iso",
	"MHRA":     "mhra",
	"PIC/S":    "pics",
	"WHO":      "who",
	"FDA":      "fda",
	"Internal": "internal",
}

// SourceKey normalises a UI source label ("Annex 1", "PIC/S") to the key
// stored with indexed documents. Unknown labels are lowercased; an empty
// label maps to DefaultSource.
func SourceKey(label string) string {
	if k, ok := sourceKeys[label]; ok {
		return k
	}
	if label == "" {
		return DefaultSource
	}
	return strings.ToLower(label)
}

// SourceKeys applies SourceKey to each label.
func SourceKeys(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = SourceKey(l)
	}
	return out
}
