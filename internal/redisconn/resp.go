// Package redisconn implements Flodgatt's RedisConnection: two TCP
// sockets to Redis, a hand-rolled RESP subset parser, and the
// SUBSCRIBE/UNSUBSCRIBE/SET command framing. This is the
// one place in the repository that does not use a full Redis client
// library on its hot path — the parser must be resumable across
// arbitrary partial reads, which rules out handing framing to go-redis.
package redisconn

import (
	"bytes"
	"strconv"

	"github.com/flodgatt/flodgatt/internal/flerr"
)

// FrameKind discriminates a fully-parsed RESP frame.
type FrameKind int

const (
	FrameMsg FrameKind = iota
	FrameNonMsg
)

// Frame is the result of successfully parsing one RESP array from the
// input buffer. ChannelText/EventText are only meaningful when
// Kind == FrameMsg (a pub/sub `message` delivery); everything else
// (subscribe/unsubscribe confirmations, anything else Redis might send)
// is classified FrameNonMsg and discarded by the caller.
type Frame struct {
	Kind        FrameKind
	ChannelText string
	EventText   string
}

// ParseFrame parses exactly one RESP frame from the front of buf.
//
// On success it returns the frame and the number of bytes consumed.
// On flerr.ErrIncomplete, consumed is always 0 — buf did not contain a
// full frame yet and the caller must retain it unchanged and retry once
// more bytes have arrived (this is what makes the parser resumable:
// parse(B) == parse(B[:n] ++ B[n:]) for any split point n, since a
// partial read never consumes bytes it can't fully account for).
// On any other error, the caller resynchronizes by discarding bytes up
// to the next plausible '*' frame start and retrying — ParseFrame
// itself never guesses at resync, it only reports what went wrong.
func ParseFrame(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return Frame{}, 0, flerr.ErrIncomplete
	}
	if buf[0] != '*' {
		return Frame{}, 0, flerr.ErrInvalidLineStart
	}

	count, pos, err := readInt(buf, 1)
	if err != nil {
		return Frame{}, 0, err
	}
	if count < 0 {
		return Frame{}, 0, flerr.ErrInvalidNumber
	}

	fields := make([]string, 0, count)
	for i := 0; i < count; i++ {
		field, next, err := parseField(buf, pos)
		if err != nil {
			return Frame{}, 0, err
		}
		fields = append(fields, field)
		pos = next
	}

	if count == 3 && fields[0] == "message" {
		return Frame{Kind: FrameMsg, ChannelText: fields[1], EventText: fields[2]}, pos, nil
	}
	return Frame{Kind: FrameNonMsg}, pos, nil
}

// parseField parses a single RESP bulk-string or integer field starting
// at buf[start], returning its text form and the position just past it.
func parseField(buf []byte, start int) (string, int, error) {
	if start >= len(buf) {
		return "", 0, flerr.ErrIncomplete
	}
	switch buf[start] {
	case '$':
		length, pos, err := readInt(buf, start+1)
		if err != nil {
			return "", 0, err
		}
		if length < 0 {
			return "", 0, flerr.ErrInvalidNumber
		}
		if pos+length+2 > len(buf) {
			return "", 0, flerr.ErrIncomplete
		}
		data := buf[pos : pos+length]
		if buf[pos+length] != '\r' || buf[pos+length+1] != '\n' {
			return "", 0, flerr.ErrInvalidLineEnd
		}
		return string(data), pos + length + 2, nil
	case ':':
		line, pos, err := readLine(buf, start+1)
		if err != nil {
			return "", 0, err
		}
		return string(line), pos, nil
	default:
		return "", 0, flerr.ErrIncorrectRedisType
	}
}

// readInt reads a decimal integer line starting at buf[start] (the
// byte just after a '*', '$' or ':' type prefix) and returns it plus
// the position just past the terminating CRLF.
func readInt(buf []byte, start int) (int, int, error) {
	line, pos, err := readLine(buf, start)
	if err != nil {
		return 0, 0, err
	}
	n, err := strconv.Atoi(string(line))
	if err != nil {
		return 0, 0, flerr.ErrInvalidNumber
	}
	return n, pos, nil
}

// readLine returns the bytes from buf[start] up to (not including) the
// next CRLF, and the position just past it. If no CRLF is present yet,
// it reports Incomplete; a bare '\r' not followed by '\n' is malformed.
func readLine(buf []byte, start int) ([]byte, int, error) {
	if start > len(buf) {
		return nil, 0, flerr.ErrIncomplete
	}
	idx := bytes.IndexByte(buf[start:], '\r')
	if idx < 0 {
		return nil, 0, flerr.ErrIncomplete
	}
	absIdx := start + idx
	if absIdx+1 >= len(buf) {
		return nil, 0, flerr.ErrIncomplete
	}
	if buf[absIdx+1] != '\n' {
		return nil, 0, flerr.ErrInvalidLineEnd
	}
	return buf[start:absIdx], absIdx + 2, nil
}

// Resync scans buf (skipping its own first byte, which is assumed to
// have already been judged unparseable) for the next plausible frame
// start and returns the index to resume parsing from, or len(buf) if
// none is found.
func Resync(buf []byte) int {
	if len(buf) <= 1 {
		return len(buf)
	}
	idx := bytes.IndexByte(buf[1:], '*')
	if idx < 0 {
		return len(buf)
	}
	return idx + 1
}
