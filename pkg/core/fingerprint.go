package core

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
	"github.com/zeebo/blake3"
)

// Fingerprint is a content digest of a payload: BLAKE3 over its RFC 8785
// canonical JSON form. Equal payloads have equal fingerprints regardless of
// which codec or writer produced them.
//
// Payloads JSON cannot represent (NaN or infinite numbers decoded from CBOR)
// are digested over their Go syntax form instead, so the result is never empty.
func Fingerprint(p Payload) string {
	raw, err := json.Marshal(p)
	if err != nil {
		// fmt prints map keys sorted, which keeps the fallback deterministic.
		raw = []byte(fmt.Sprintf("go:%#v", p))
	} else if canonical, err := jcs.Transform(raw); err == nil {
		raw = canonical
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
