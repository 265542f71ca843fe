package projection

import (
	"strings"

	"github.com/aretw0/bidtrail/pkg/stages"
)

// OtherDocuments is the phase of documents nothing could place.
const OtherDocuments = "Other Documents"

// purchaseRequestMarkers identify documents of the purchase request phase.
var purchaseRequestMarkers = []string{"purchase", "pr", "aip", "certificate"}

// Classify guesses the phase of a document that carries none, from its type
// and file key. Some writers historically omitted the phase; this fallback
// must never override a phase the record states.
func Classify(documentType, fileKey string) (phase string, ok bool) {
	for _, field := range []string{documentType, fileKey} {
		lower := strings.ToLower(field)
		for _, marker := range purchaseRequestMarkers {
			if strings.Contains(lower, marker) {
				return stages.PRInitiation, true
			}
		}
	}
	return "", false
}
