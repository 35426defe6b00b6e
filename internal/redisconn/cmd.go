package redisconn

import "fmt"

// encodeArray2 renders a two-element RESP array, the shape used for
// SUBSCRIBE/UNSUBSCRIBE/AUTH commands.
func encodeArray2(a, b string) []byte {
	return []byte(fmt.Sprintf("*2\r\n$%d\r\n%s\r\n$%d\r\n%s\r\n", len(a), a, len(b), b))
}

// encodeSet renders the three-element SET command the manager mirrors
// subscription counts through for the monolith's own bookkeeping.
func encodeSet(key, value string) []byte {
	return []byte(fmt.Sprintf("*3\r\n$3\r\nSET\r\n$%d\r\n%s\r\n$%d\r\n%s\r\n", len(key), key, len(value), value))
}
