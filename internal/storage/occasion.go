package storage

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strings"
)

// OccasionID derives the identifier shared by repeats of one logical action.
// Context keys beginning with "_" carry per-request detail (remote address,
// user agent, ...) and are left out so that such repeats still match.
func OccasionID(logger, messageKey string, context map[string]string) string {
	keys := make([]string, 0, len(context))
	for k := range context {
		if strings.HasPrefix(k, "_") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	writeField(h, logger)
	writeField(h, messageKey)
	for _, k := range keys {
		writeField(h, k)
		writeField(h, context[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// writeField writes s length-prefixed so no two field sequences share an
// encoding.
func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
