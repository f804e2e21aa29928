package sharecode

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		matchID   uint64
		outcomeID uint64
		token     uint16
	}{
		{"zero", 0, 0, 0},
		{"small", 1, 2, 3},
		{"max", math.MaxUint64, math.MaxUint64, math.MaxUint16},
		{"match only", math.MaxUint64, 0, 0},
		{"token only", 0, 0, math.MaxUint16},
		{"typical", 3230642215713767580, 3230647599455272414, 30741},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code := Encode(tc.matchID, tc.outcomeID, tc.token)
			info, err := Decode(code)
			require.NoError(t, err)
			assert.Equal(t, tc.matchID, info.MatchID)
			assert.Equal(t, tc.outcomeID, info.OutcomeID)
			assert.Equal(t, tc.token, info.Token)
		})
	}
}

func TestRoundTripRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		matchID := rng.Uint64()
		outcomeID := rng.Uint64()
		token := uint16(rng.Uint32())

		code := Encode(matchID, outcomeID, token)
		info, err := Decode(code)
		require.NoError(t, err, "code %s", code)
		require.Equal(t, Info{MatchID: matchID, OutcomeID: outcomeID, Token: token}, info)
	}
}

func TestEncodeFormat(t *testing.T) {
	code := Encode(0, 0, 0)
	assert.Equal(t, "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAA", code)

	code = Encode(12345, 67890, 42)
	assert.True(t, strings.HasPrefix(code, "CSGO-"))
	assert.Len(t, code, len("CSGO-")+25+4)
	assert.Equal(t, 5, strings.Count(code, "-"))
}

func TestDecodeMalformed(t *testing.T) {
	cases := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"no prefix", "AAAAA-AAAAA-AAAAA-AAAAA-AAAAA"},
		{"wrong prefix", "CSG2-AAAAA-AAAAA-AAAAA-AAAAA-AAAAA"},
		{"too short", "CSGO-AAAAA-AAAAA-AAAAA-AAAAA"},
		{"too long", "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAA-AAAAA"},
		{"excluded letter l", "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAAl"},
		{"excluded digit 0", "CSGO-AAAAA-AAAAA-AAAAA-AAAAA-AAAA0"},
		{"excluded letter I", "CSGO-IAAAA-AAAAA-AAAAA-AAAAA-AAAAA"},
		{"overflow", "CSGO-99999-99999-99999-99999-99999"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.code)
			require.ErrorIs(t, err, ErrMalformed)
			assert.False(t, Valid(tc.code))
		})
	}
}

func TestDecodeIgnoresHyphenPlacement(t *testing.T) {
	code := Encode(123456789, 987654321, 77)
	squashed := "CSGO-" + strings.ReplaceAll(strings.TrimPrefix(code, "CSGO-"), "-", "")

	a, err := Decode(code)
	require.NoError(t, err)
	b, err := Decode(squashed)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDemoURL(t *testing.T) {
	info := Info{MatchID: 1, OutcomeID: 2, Token: 3}
	url := DemoURL(info, 124)
	assert.Equal(t, "http://replay124.valve.net/730/000000000000000000001_0000000002.dem.bz2", url)
}
