package pumpfun

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logrus.NewEntry(logger)
}

// testKey returns a distinct base58 32-byte account address.
func testKey(seed byte) string {
	return base58.Encode(bytes.Repeat([]byte{seed}, 32))
}

func testAccounts() []string {
	accounts := make([]string, 8)
	for i := range accounts {
		accounts[i] = testKey(byte(i + 1))
	}
	return accounts
}

// encodeCreate builds an instruction payload: discriminator plus three
// length-prefixed strings.
func encodeCreate(name, symbol, uri string) []byte {
	var buf bytes.Buffer
	buf.Write(createDiscriminator[:])
	for _, s := range []string{name, symbol, uri} {
		var l [4]byte
		binary.LittleEndian.PutUint32(l[:], uint32(len(s)))
		buf.Write(l[:])
		buf.WriteString(s)
	}
	return buf.Bytes()
}

func TestDecodeCreate_RoundTrip(t *testing.T) {
	d := NewDecoder(testLogger())
	accounts := testAccounts()
	data := encodeCreate("MyAwesomeToken", "MAT", "https://example.com/metadata.json")

	ins, applicable, err := d.DecodeCreate(data, accounts)
	require.NoError(t, err)
	require.True(t, applicable)
	require.NotNil(t, ins)

	assert.Equal(t, "MyAwesomeToken", ins.Name)
	assert.Equal(t, "MAT", ins.Symbol)
	assert.Equal(t, "https://example.com/metadata.json", ins.URI)
	assert.Equal(t, accounts[0], ins.Mint)
	assert.Equal(t, accounts[2], ins.BondingCurve)
	assert.Equal(t, accounts[7], ins.Creator)
}

func TestDecodeCreate_ExtractedKeysAre32Bytes(t *testing.T) {
	d := NewDecoder(testLogger())
	ins, _, err := d.DecodeCreate(encodeCreate("A", "B", "C"), testAccounts())
	require.NoError(t, err)

	for _, key := range []string{ins.Mint, ins.BondingCurve, ins.Creator} {
		raw, err := base58.Decode(key)
		require.NoError(t, err)
		assert.Len(t, raw, 32)
		// Base58 round-trips to the identical string.
		assert.Equal(t, key, base58.Encode(raw))
	}
}

func TestDecodeCreate_WrongDiscriminatorNotApplicable(t *testing.T) {
	d := NewDecoder(testLogger())
	data := encodeCreate("X", "Y", "Z")
	data[0] ^= 0xff

	ins, applicable, err := d.DecodeCreate(data, testAccounts())
	assert.Nil(t, ins)
	assert.False(t, applicable)
	assert.NoError(t, err)
}

func TestDecodeCreate_ShortPayloadNotApplicable(t *testing.T) {
	d := NewDecoder(testLogger())
	ins, applicable, err := d.DecodeCreate([]byte{0x61, 0x21}, testAccounts())
	assert.Nil(t, ins)
	assert.False(t, applicable)
	assert.NoError(t, err)
}

func TestDecodeCreate_LengthPrefixBeyondPayload(t *testing.T) {
	d := NewDecoder(testLogger())
	data := encodeCreate("MyAwesomeToken", "MAT", "uri")
	// Claim a name longer than the remaining bytes.
	binary.LittleEndian.PutUint32(data[8:12], 1<<20)

	ins, applicable, err := d.DecodeCreate(data, testAccounts())
	assert.Nil(t, ins)
	assert.True(t, applicable)

	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestDecodeCreate_InvalidUTF8(t *testing.T) {
	d := NewDecoder(testLogger())
	data := encodeCreate("My\xff\xfeToken", "MAT", "uri")

	ins, applicable, err := d.DecodeCreate(data, testAccounts())
	assert.Nil(t, ins)
	assert.True(t, applicable)
	assert.Error(t, err)
}

func TestDecodeCreate_AccountsTruncated(t *testing.T) {
	d := NewDecoder(testLogger())
	data := encodeCreate("Token", "TKN", "uri")

	ins, applicable, err := d.DecodeCreate(data, testAccounts()[:5])
	assert.Nil(t, ins)
	assert.True(t, applicable)
	require.ErrorIs(t, err, ErrAccountsTruncated)
}

func TestDecodeCreate_InvalidAccountKey(t *testing.T) {
	d := NewDecoder(testLogger())
	accounts := testAccounts()
	accounts[0] = "not-base58-0OIl"

	ins, applicable, err := d.DecodeCreate(encodeCreate("T", "T", "u"), accounts)
	assert.Nil(t, ins)
	assert.True(t, applicable)
	assert.Error(t, err)
}

func TestDecodeCreate_TrailingBytesTolerated(t *testing.T) {
	d := NewDecoder(testLogger())
	data := append(encodeCreate("Token", "TKN", "uri"), 0xde, 0xad, 0xbe, 0xef)

	ins, applicable, err := d.DecodeCreate(data, testAccounts())
	require.NoError(t, err)
	require.True(t, applicable)
	assert.Equal(t, "Token", ins.Name)
}

func TestDecodeBondingCurve(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(bondingCurveDiscriminator[:])
	var v [8]byte
	binary.LittleEndian.PutUint64(v[:], 30_000_000_000)
	buf.Write(v[:])
	binary.LittleEndian.PutUint64(v[:], 1_073_000_000_000_000)
	buf.Write(v[:])
	// Real accounts carry more fields after the reserves.
	buf.Write([]byte{1, 2, 3, 4})

	curve, err := DecodeBondingCurve(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, uint64(30_000_000_000), curve.VirtualSolReserves)
	assert.Equal(t, uint64(1_073_000_000_000_000), curve.VirtualTokenReserves)
}

func TestDecodeBondingCurve_Rejections(t *testing.T) {
	_, err := DecodeBondingCurve([]byte{1, 2, 3})
	assert.Error(t, err)

	_, err = DecodeBondingCurve(append(bondingCurveDiscriminator[:], 1, 2, 3))
	assert.Error(t, err)
}
