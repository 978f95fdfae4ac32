package flatfat

import (
	"time"
)

// ParseTimestamp reads the creation time of a directory entry.
// It is stored as seconds since the unix epoch in an unsigned 32 bit field, which
// covers 1970-01-01 00:00:00 up to 2106-02-07 06:28:15 UTC.
// It returns the time in UTC.
//
// The value 0 is returned as time.Time{} so that time.Time.IsZero() can be used for
// entries which never got a timestamp, like the slots of a freshly created volume.
func ParseTimestamp(input uint32) time.Time {
	if input == 0 {
		return time.Time{}
	}
	return time.Unix(int64(input), 0).UTC()
}

// MakeTimestamp converts t to the on-disk representation used by ParseTimestamp.
// Sub-second precision is dropped.
//
// Times before the epoch (including time.Time{}) are stored as 0, times after the
// last representable second are clamped to it.
func MakeTimestamp(t time.Time) uint32 {
	sec := t.Unix()
	if t.IsZero() || sec <= 0 {
		return 0
	}
	if sec > int64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sec)
}
