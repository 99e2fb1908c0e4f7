package herald

import (
	"fmt"
	"strconv"
	"time"
)

// snowflakeEpoch is the millisecond timestamp of the first second of 2015,
// the zero point for timestamps embedded in IDs.
const snowflakeEpoch = 1420070400000

// Snowflake is a unique identifier assigned by the remote service to every
// entity (users, guilds, channels, messages, ...).
//
// Snowflakes are 64-bit unsigned integers but travel as decimal strings in
// JSON payloads; the type handles both representations transparently.
type Snowflake uint64

// ParseSnowflake parses the decimal string form of an ID.
func ParseSnowflake(s string) (Snowflake, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("herald: invalid snowflake %q: %w", s, err)
	}
	return Snowflake(n), nil
}

// String returns the decimal string form of the ID.
func (s Snowflake) String() string {
	return strconv.FormatUint(uint64(s), 10)
}

// IsZero reports whether the ID is unset.
func (s Snowflake) IsZero() bool {
	return s == 0
}

// Time returns the creation time embedded in the ID.
func (s Snowflake) Time() time.Time {
	ms := int64(s>>22) + snowflakeEpoch
	return time.UnixMilli(ms)
}

// MarshalText implements encoding.TextMarshaler. IDs are encoded as decimal
// strings, matching the wire format.
func (s Snowflake) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Snowflake) UnmarshalText(b []byte) error {
	parsed, err := ParseSnowflake(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
