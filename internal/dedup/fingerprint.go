package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Fingerprint is the hex SHA-256 digest of a message's canonical
// content parts. Equal fingerprints mean equal content as far as
// deduplication is concerned.
type Fingerprint string

// Fingerprint reduces the descriptor to its canonical fingerprint and
// content kind. Parts are tagged, sorted and joined so the digest does
// not depend on assembly order. ok is false when the message carries
// nothing identity-bearing (service messages, empty updates); such
// messages cannot be deduplicated.
func (d Descriptor) Fingerprint() (Fingerprint, ContentKind, bool) {
	parts := make([]string, 0, 4)
	var kind ContentKind

	if d.Text != "" {
		parts = append(parts, "text:"+normalize(d.Text))
	}
	if d.Caption != "" {
		parts = append(parts, "caption:"+normalize(d.Caption))
	}
	for _, ref := range d.Media {
		parts = append(parts, ref.parts()...)
		if kind == "" {
			kind = ref.Kind()
		}
	}

	if len(parts) == 0 {
		return "", "", false
	}
	if kind == "" {
		kind = KindText
	}

	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return Fingerprint(hex.EncodeToString(sum[:])), kind, true
}

// normalize lower-cases text and collapses all whitespace runs so
// cosmetic edits of the same text land on one fingerprint.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
