package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Key is a 256-bit query fingerprint, hex-encoded, grounded on
// preprocess.go's SchemaSuffixFromHash sha256-digest idiom (used there for
// schema deduplication rather than a result cache, but the same "hash the
// canonical inputs" pattern applies directly here).
type Key string

// Fingerprint derives a Key from the canonicalized query text plus the
// tenant, optional time range, and bound parameters, per spec §4.6.
func Fingerprint(queryText, tenant string, timeLo, timeHi *time.Time, params []interface{}) Key {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", Canonicalize(queryText), tenant)
	if timeLo != nil {
		fmt.Fprintf(h, "%s", timeLo.UTC().Format(time.RFC3339Nano))
	}
	h.Write([]byte{0})
	if timeHi != nil {
		fmt.Fprintf(h, "%s", timeHi.UTC().Format(time.RFC3339Nano))
	}
	h.Write([]byte{0})
	for _, p := range params {
		fmt.Fprintf(h, "%v\x00", p)
	}
	return Key(hex.EncodeToString(h.Sum(nil)))
}
