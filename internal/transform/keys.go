package transform

import (
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// EventKey hashes the natural tuple identifying a fixture event into a
// stable string, since the provider does not hand out a stable event id.
// The same tuple always yields the same key, making replays idempotent
// (§4.6).
func EventKey(minute int, extra *int, teamID, playerID *int64, eventType, detail string) string {
	h := xxhash.New()
	writeIntField(h, minute)
	writeOptIntField(h, extra)
	writeOptInt64Field(h, teamID)
	writeOptInt64Field(h, playerID)
	writeStringField(h, eventType)
	writeStringField(h, detail)
	return strconv.FormatUint(h.Sum64(), 16)
}

// InjuryKey hashes the natural tuple identifying an injury row, mirroring
// EventKey (§4.6).
func InjuryKey(teamID, playerID int64, injuryType, reason string, date time.Time) string {
	h := xxhash.New()
	writeInt64Field(h, teamID)
	writeInt64Field(h, playerID)
	writeStringField(h, injuryType)
	writeStringField(h, reason)
	writeStringField(h, date.UTC().Format("2006-01-02"))
	return strconv.FormatUint(h.Sum64(), 16)
}

func writeStringField(h *xxhash.Digest, s string) {
	_, _ = h.WriteString(s)
	_, _ = h.Write([]byte{0})
}

func writeIntField(h *xxhash.Digest, v int) {
	writeStringField(h, strconv.Itoa(v))
}

func writeInt64Field(h *xxhash.Digest, v int64) {
	writeStringField(h, strconv.FormatInt(v, 10))
}

func writeOptIntField(h *xxhash.Digest, v *int) {
	if v == nil {
		writeStringField(h, "nil")
		return
	}
	writeIntField(h, *v)
}

func writeOptInt64Field(h *xxhash.Digest, v *int64) {
	if v == nil {
		writeStringField(h, "nil")
		return
	}
	writeInt64Field(h, *v)
}
