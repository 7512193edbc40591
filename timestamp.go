package scorestore

import "time"

// Timestamp is a point in time persisted as milliseconds since the unix epoch.
// Records keep timestamps numeric so that indexes over them sort chronologically.
type Timestamp int64

// NewTimestamp converts t into a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time returns the timestamp as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}
