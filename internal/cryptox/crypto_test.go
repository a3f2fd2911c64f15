package cryptox

import (
	"crypto/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveMasterKeys_Deterministic(t *testing.T) {
	mk1, pw1, err := DeriveMasterKeys("secret-password", "fixed-salt", 2)
	require.NoError(t, err)
	mk2, pw2, err := DeriveMasterKeys("secret-password", "fixed-salt", 2)
	require.NoError(t, err)

	assert.Equal(t, mk1, mk2)
	assert.Equal(t, pw1, pw2)
}

func TestDeriveMasterKeys_V2Shape(t *testing.T) {
	mk, pw, err := DeriveMasterKeys("secret-password", "fixed-salt", 2)
	require.NoError(t, err)

	hexRe := regexp.MustCompile(`^[0-9a-f]+$`)
	assert.Len(t, mk, 64)
	assert.Len(t, pw, 128)
	assert.True(t, hexRe.MatchString(mk), "master key must be lowercase hex")
	assert.True(t, hexRe.MatchString(pw), "login password must be lowercase hex")
}

func TestDeriveMasterKeys_V1UsesFullDerivation(t *testing.T) {
	mk1, pw1, err := DeriveMasterKeys("secret-password", "fixed-salt", 1)
	require.NoError(t, err)
	require.Len(t, mk1, 128)
	assert.Equal(t, mk1, pw1)

	// Version 2 takes the first half of the same PBKDF2 output.
	mk2, _, err := DeriveMasterKeys("secret-password", "fixed-salt", 2)
	require.NoError(t, err)
	assert.Equal(t, mk1[:64], mk2)
}

func TestDeriveMasterKeys_DifferentInputs(t *testing.T) {
	a, _, err := DeriveMasterKeys("secret-password", "salt-1", 2)
	require.NoError(t, err)
	b, _, err := DeriveMasterKeys("secret-password", "salt-2", 2)
	require.NoError(t, err)
	c, _, err := DeriveMasterKeys("other-password", "salt-1", 2)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDeriveMasterKeys_UnsupportedVersion(t *testing.T) {
	_, _, err := DeriveMasterKeys("pw", "salt", 3)
	require.Error(t, err)
}

func TestHashName_DependsOnLowercaseOnly(t *testing.T) {
	key := DeriveNameHMACKey("0123456789abcdef0123456789abcdef", "user@example.com")

	assert.Equal(t, HashName("Report.PDF", key), HashName("report.pdf", key))
	assert.NotEqual(t, HashName("report.pdf", key), HashName("report2.pdf", key))
	assert.Regexp(t, `^[0-9a-f]{64}$`, HashName("report.pdf", key))
}

func TestDeriveNameHMACKey_EmailCaseInsensitive(t *testing.T) {
	a := DeriveNameHMACKey("k", "User@Example.COM")
	b := DeriveNameHMACKey("k", "user@example.com")
	assert.Equal(t, a, b)

	c := DeriveNameHMACKey("other", "user@example.com")
	assert.NotEqual(t, a, c)
}

func TestRandomString_AlphabetAndLength(t *testing.T) {
	s, err := RandomString(64)
	require.NoError(t, err)
	require.Len(t, s, 64)

	for _, r := range s {
		assert.True(t, strings.ContainsRune(randAlphabet, r), "unexpected rune %q", r)
	}

	other, err := RandomString(64)
	require.NoError(t, err)
	assert.NotEqual(t, s, other)
}

func TestNewUUID_Format(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	for i := 0; i < 16; i++ {
		id := NewUUID()
		assert.True(t, re.MatchString(id), "not a v4 uuid: %s", id)
	}
}

func TestEncryptData_RoundTrip(t *testing.T) {
	key := []byte("abcdefghijklmnopqrstuvwxyzABCDEF")

	for _, size := range []int{0, 1, 16, 4096, 1 << 20} {
		plaintext := make([]byte, size)
		_, err := rand.Read(plaintext)
		require.NoError(t, err)

		ct, err := EncryptData(plaintext, key)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(ct), 12+size+16)

		// The IV prefix is printable alphabet text, per the chunk format.
		for _, r := range string(ct[:12]) {
			assert.True(t, strings.ContainsRune(randAlphabet, r))
		}

		out, err := DecryptData(ct, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, out)
	}
}

func TestDecryptData_RejectsTamper(t *testing.T) {
	key := []byte("abcdefghijklmnopqrstuvwxyzABCDEF")
	ct, err := EncryptData([]byte("chunk content"), key)
	require.NoError(t, err)

	ct[len(ct)-1] ^= 0x01
	_, err = DecryptData(ct, key)
	require.Error(t, err)
}

func TestDecryptData_TooShort(t *testing.T) {
	_, err := DecryptData([]byte("short"), []byte("abcdefghijklmnopqrstuvwxyzABCDEF"))
	require.Error(t, err)
}
