// Package sharecode implements the CS2 match sharecode encoding.
//
// A sharecode is a base-57 positional encoding of a 144-bit big-endian
// value: 8 bytes match id, 8 bytes outcome id, 2 bytes token. The wire
// format is CSGO-xxxxx-xxxxx-xxxxx-xxxxx-xxxxx.
package sharecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet for base-57 digits. I, l, g, 0 and 1 are excluded.
const alphabet = "ABCDEFGHJKLMNOPQRSTUVWXYZabcdefhijkmnopqrstuvwxyz23456789"

const (
	prefix   = "CSGO-"
	dataLen  = 25
	byteLen  = 18
	groupLen = 5
)

// ErrMalformed is returned by Decode for any input that is not a
// well-formed sharecode. Callers match it with errors.Is.
var ErrMalformed = errors.New("malformed sharecode")

// Info is the decoded identity triple carried by a sharecode.
type Info struct {
	MatchID   uint64
	OutcomeID uint64
	Token     uint16
}

var base = big.NewInt(int64(len(alphabet)))

// Decode parses a sharecode into its identity triple. The input must
// carry the CSGO- prefix and exactly 25 alphabet characters; hyphens
// between groups are ignored.
func Decode(code string) (Info, error) {
	if !strings.HasPrefix(code, prefix) {
		return Info{}, fmt.Errorf("%w: missing %q prefix", ErrMalformed, prefix)
	}

	data := strings.ReplaceAll(strings.TrimPrefix(code, prefix), "-", "")
	if len(data) != dataLen {
		return Info{}, fmt.Errorf("%w: expected %d data characters, got %d", ErrMalformed, dataLen, len(data))
	}

	// First character is the most significant base-57 digit.
	value := new(big.Int)
	for _, ch := range data {
		idx := strings.IndexRune(alphabet, ch)
		if idx < 0 {
			return Info{}, fmt.Errorf("%w: invalid character %q", ErrMalformed, ch)
		}
		value.Mul(value, base)
		value.Add(value, big.NewInt(int64(idx)))
	}

	if value.BitLen() > byteLen*8 {
		return Info{}, fmt.Errorf("%w: value exceeds 144 bits", ErrMalformed)
	}

	var raw [byteLen]byte
	value.FillBytes(raw[:])

	return Info{
		MatchID:   binary.BigEndian.Uint64(raw[0:8]),
		OutcomeID: binary.BigEndian.Uint64(raw[8:16]),
		Token:     binary.BigEndian.Uint16(raw[16:18]),
	}, nil
}

// Encode renders the identity triple as a sharecode. The inverse of
// Decode for every valid triple.
func Encode(matchID, outcomeID uint64, token uint16) string {
	var raw [byteLen]byte
	binary.BigEndian.PutUint64(raw[0:8], matchID)
	binary.BigEndian.PutUint64(raw[8:16], outcomeID)
	binary.BigEndian.PutUint16(raw[16:18], token)

	value := new(big.Int).SetBytes(raw[:])
	digits := make([]byte, dataLen)
	rem := new(big.Int)
	for i := dataLen - 1; i >= 0; i-- {
		value.QuoRem(value, base, rem)
		digits[i] = alphabet[rem.Int64()]
	}

	var b strings.Builder
	b.WriteString(prefix)
	for i := 0; i < dataLen; i += groupLen {
		if i > 0 {
			b.WriteByte('-')
		}
		b.Write(digits[i : i+groupLen])
	}
	return b.String()
}

// Valid reports whether code would decode without error.
func Valid(code string) bool {
	_, err := Decode(code)
	return err == nil
}

// DemoURL builds the replay download URL for a decoded sharecode.
// Valve serves demos as {matchID padded to 21}_{outcomeID padded to
// 10}.dem.bz2 from the numbered replay hosts.
func DemoURL(info Info, server int) string {
	return fmt.Sprintf("http://replay%d.valve.net/730/%021d_%010d.dem.bz2", server, info.MatchID, info.OutcomeID)
}
