package serialize

import "time"

type formatKind int

const (
	layoutDate formatKind = iota
	layoutTimestamp
)

// Engine-native textual layouts, used for round-trip fidelity during a dump.
const (
	nativeDateLayout      = "2006-01-02"
	nativeTimestampLayout = "2006-01-02 15:04:05.999999"
)

// Outside a dump pass timestamps render in RFC 3339, the generic display
// format.
var nativeFormats bool

// AcquireNativeFormats switches time serialization to the storage engine's
// native layouts for the duration of a dump pass. The returned release func
// must run in a defer so the override is restored even when a row fails to
// serialize.
func AcquireNativeFormats() (release func()) {
	prev := nativeFormats
	nativeFormats = true
	return func() { nativeFormats = prev }
}

func activeLayout(kind formatKind) string {
	if kind == layoutDate {
		return nativeDateLayout
	}
	if nativeFormats {
		return nativeTimestampLayout
	}
	return time.RFC3339
}

func formatTime(t time.Time, kind formatKind) string {
	return t.Format(activeLayout(kind))
}
