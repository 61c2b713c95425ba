package nmea

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXORChecksumEmpty(t *testing.T) {
	assert.Equal(t, byte(0), XORChecksum(nil))
}

func TestEncodeThenVerifyRoundTrips(t *testing.T) {
	body := "LOG108,2,0,0,0,0,5,192,3,47"
	sentence := Encode(body)

	got, err := Verify([]byte(sentence))
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestVerifyCaseInsensitiveHex(t *testing.T) {
	body := "PROY108"
	sum := XORChecksum([]byte(body))
	lower := []byte("$" + body + "*" + toLowerHex(sum) + "\r\n")

	got, err := Verify(lower)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestVerifyRejectsMutatedChecksum(t *testing.T) {
	sentence := []byte(Encode("LOG109,1"))
	// Flip one hex digit of the trailing checksum.
	idx := len(sentence) - 4
	if sentence[idx] == '0' {
		sentence[idx] = '1'
	} else {
		sentence[idx] = '0'
	}

	_, err := Verify(sentence)
	assert.Error(t, err)
}

func TestVerifyRejectsMissingDollar(t *testing.T) {
	_, err := Verify([]byte("LOG109,1*61\r\n"))
	assert.Error(t, err)
}

func toLowerHex(b byte) string {
	const hex = "0123456789abcdef"
	return string([]byte{hex[b>>4], hex[b&0xf]})
}
