// Package idgen generates opaque, lexically sortable, time-prefixed ids for
// the public-facing rows (memories, entities, goals, links): a 48-bit
// millisecond timestamp followed by a crockford-base32 random suffix, so that
// two ids created later always sort after ids created earlier regardless of
// content.
package idgen

import (
	"crypto/rand"
	"fmt"
	"time"
)

const crockford = "0123456789abcdefghjkmnpqrstvwxyz"

// suffixLen is the number of random crockford-base32 characters appended
// after the timestamp component, giving ~80 bits of collision resistance
// within the same millisecond.
const suffixLen = 16

// New returns a new id for the given kind, e.g. "mem", "ent", "goal", "lnk".
// The format is "<kind>_<10 timestamp chars><16 random chars>".
func New(kind string) string {
	return fmt.Sprintf("%s_%s%s", kind, timestampComponent(time.Now()), randomSuffix())
}

// timestampComponent encodes milliseconds since the Unix epoch (48 bits) as
// 10 crockford-base32 characters, zero-padded, so lexical and chronological
// order agree.
func timestampComponent(t time.Time) string {
	ms := uint64(t.UnixMilli())
	buf := make([]byte, 10)
	for i := 9; i >= 0; i-- {
		buf[i] = crockford[ms&0x1f]
		ms >>= 5
	}
	return string(buf)
}

func randomSuffix() string {
	raw := make([]byte, suffixLen)
	if _, err := rand.Read(raw); err != nil {
		// crypto/rand failing is a fatal platform problem; panic rather than
		// silently hand back a collision-prone id.
		panic(fmt.Sprintf("idgen: crypto/rand unavailable: %v", err))
	}
	out := make([]byte, suffixLen)
	for i, b := range raw {
		out[i] = crockford[b&0x1f]
	}
	return string(out)
}
