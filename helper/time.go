package helper

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnixTime stores a timestamp as unix seconds and serializes it as a JSON
// string, matching the cache schema used by external persistence layers.
type UnixTime struct {
	T time.Time
}

func NewUnixTime(t time.Time) UnixTime {
	return UnixTime{T: t.Truncate(time.Second)}
}

func (u UnixTime) IsZero() bool {
	return u.T.IsZero() || u.T.Unix() == 0
}

func (u UnixTime) MarshalJSON() ([]byte, error) {
	if u.T.IsZero() {
		return []byte(`"0"`), nil
	}
	return []byte(fmt.Sprintf("%q", strconv.FormatInt(u.T.Unix(), 10))), nil
}

func (u *UnixTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		u.T = time.Time{}
		return nil
	}
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing unix timestamp %q: %w", s, err)
	}
	u.T = time.Unix(sec, 0).UTC()
	return nil
}
