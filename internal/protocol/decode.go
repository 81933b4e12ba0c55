// Package protocol implements the register-level conventions of the panel
// server: word decoders, the per-device register map and the signal quality
// classification used by the wireless sensor diagnostics.
package protocol

import (
	"fmt"
	"math"
	"strings"
)

// DecodeASCII converts registers holding two packed Latin-1 characters each
// (high byte first) into a string. The result is cut at the first NUL byte
// and trimmed of surrounding whitespace. An empty input yields "".
func DecodeASCII(words []uint16) string {
	if len(words) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(words) * 2)
	for _, word := range words {
		b.WriteByte(byte(word >> 8))
		b.WriteByte(byte(word))
	}
	s := b.String()
	if idx := strings.IndexByte(s, 0); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// DecodeFloat32 reassembles two registers into a big-endian IEEE-754 single
// precision float. Any other word count yields (0, false).
func DecodeFloat32(words []uint16) (float64, bool) {
	if len(words) != 2 {
		return 0, false
	}
	bits := uint32(words[0])<<16 | uint32(words[1])
	return float64(math.Float32frombits(bits)), true
}

// DecodeUInt16 returns the first register. Single-register bitmaps such as
// the RF validity and communication status flags are read this way and
// interpreted as enum codes without further bit splitting.
func DecodeUInt16(words []uint16) (uint16, bool) {
	if len(words) == 0 {
		return 0, false
	}
	return words[0], true
}

// DecodeHexID renders each register as four uppercase hex digits, drops
// trailing zero registers and truncates the result to eight characters.
// RFID tags occupy a 6-register block where only the leading non-zero words
// carry data.
func DecodeHexID(words []uint16) string {
	end := len(words)
	for end > 0 && words[end-1] == 0 {
		end--
	}
	var b strings.Builder
	for _, word := range words[:end] {
		fmt.Fprintf(&b, "%04X", word)
	}
	s := b.String()
	if len(s) > 8 {
		s = s[:8]
	}
	return s
}

// DecodeUInt64 accumulates up to four registers into one unsigned integer,
// most significant word first. Some firmware revisions expose identifiers
// as a decimal uint64 instead of the hex form; this is the alternate decode
// for those paths.
func DecodeUInt64(words []uint16) (uint64, bool) {
	if len(words) == 0 || len(words) > 4 {
		return 0, false
	}
	var result uint64
	for _, word := range words {
		result = result<<16 | uint64(word)
	}
	return result, true
}
