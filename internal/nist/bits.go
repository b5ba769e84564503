package nist

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// FileMode is the encoding of an uploaded bit sequence.
type FileMode int

const (
	ModeUnknown FileMode = iota - 1
	// ModeText is '0'/'1' characters; whitespace is ignored.
	ModeText
	// ModeBytes01 is one bit per byte, each byte 0x00 or 0x01.
	ModeBytes01
	// ModePackedMSB is packed bits, most significant bit first.
	ModePackedMSB
)

func (m FileMode) String() string {
	switch m {
	case ModeText:
		return "txt"
	case ModeBytes01:
		return "bin01"
	case ModePackedMSB:
		return "binpacked"
	}
	return "unknown"
}

// ParseMode accepts txt, bin01 and binpacked; anything else is
// ModeUnknown.
func ParseMode(s string) FileMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "txt":
		return ModeText
	case "bin01":
		return ModeBytes01
	case "binpacked":
		return ModePackedMSB
	}
	return ModeUnknown
}

var ErrNoBits = errors.New("nist: no bits in input")

// ParseBitString extracts the '0' and '1' characters of s, skipping
// whitespace and ignoring anything else.
func ParseBitString(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		switch r {
		case '0':
			out = append(out, 0)
		case '1':
			out = append(out, 1)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoBits
	}
	return out, nil
}

// ParseBytes01 reads one bit per byte.
func ParseBytes01(b []byte) ([]byte, error) {
	for i, by := range b {
		if by > 1 {
			return nil, fmt.Errorf("nist: byte #%d is 0x%02x, want 0x00 or 0x01", i, by)
		}
	}
	if len(b) == 0 {
		return nil, ErrNoBits
	}
	return append([]byte(nil), b...), nil
}

// UnpackMSB expands packed bytes into bits, most significant first.
func UnpackMSB(b []byte) []byte {
	out := make([]byte, 0, len(b)*8)
	for _, by := range b {
		for bit := 7; bit >= 0; bit-- {
			out = append(out, (by>>uint(bit))&1)
		}
	}
	return out
}

// UnpackMSBN is UnpackMSB truncated to the first n bits.
func UnpackMSBN(b []byte, n int) []byte {
	bits := UnpackMSB(b)
	if n < len(bits) {
		bits = bits[:n]
	}
	return bits
}

// GuessMode treats data made only of 0x00 and 0x01 bytes as ModeBytes01
// and everything else as packed.
func GuessMode(b []byte) FileMode {
	if len(b) == 0 {
		return ModePackedMSB
	}
	for _, by := range b {
		if by > 1 {
			return ModePackedMSB
		}
	}
	return ModeBytes01
}

// LooksLikeBitString reports whether s holds only '0', '1' and whitespace,
// with at least one bit.
func LooksLikeBitString(s string) bool {
	count := 0
	for _, r := range s {
		switch {
		case r == '0' || r == '1':
			count++
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return count > 0
}

// Decode turns data into bits according to mode. ModeUnknown guesses: text
// when data looks like a bit string, otherwise GuessMode.
func Decode(data []byte, mode FileMode) ([]byte, error) {
	if mode == ModeUnknown {
		if LooksLikeBitString(string(data)) {
			mode = ModeText
		} else {
			mode = GuessMode(data)
		}
	}
	switch mode {
	case ModeText:
		return ParseBitString(string(data))
	case ModeBytes01:
		return ParseBytes01(data)
	case ModePackedMSB:
		if len(data) == 0 {
			return nil, ErrNoBits
		}
		return UnpackMSB(data), nil
	}
	return nil, fmt.Errorf("nist: unknown mode %d", int(mode))
}
