// Package id implements Flodgatt's wire-level identifier type.
//
// Mastodon assigns 64-bit integer ids to accounts, statuses, lists, and
// tags, but its JS clients cannot hold a 64-bit integer without loss of
// precision, so every id crosses the wire as a decimal string.
package id

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Id is a 64-bit signed integer that marshals to/from a decimal string.
type Id int64

// Invalid is the sentinel used where no id is known (it is -1, not the
// zero value) —
// Mastodon's streaming server uses -1 the same way for the anonymous
// public user.
const Invalid Id = -1

func Parse(s string) (Id, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id: invalid integer %q: %w", s, err)
	}
	return Id(n), nil
}

func (i Id) String() string {
	return strconv.FormatInt(int64(i), 10)
}

func (i Id) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

func (i *Id) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("id: invalid decimal string %q: %w", s, err)
		}
		*i = Id(n)
		return nil
	}
	// Tolerate a bare JSON number too, in case an upstream payload sends one.
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: expected string or number, got %s: %w", b, err)
	}
	*i = Id(n)
	return nil
}
