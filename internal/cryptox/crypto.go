// Package cryptox implements the client-side cryptography of the Filen
// protocol: password key stretching, the "002" metadata envelope
// (AES-256-GCM over PBKDF2-derived keys), per-chunk data encryption,
// deterministic filename hashing, and secure random identifiers.
//
// All constructions are fixed by the wire protocol and must stay
// byte-compatible with the other Filen clients; do not "improve" the
// single-iteration PBKDF2 envelope-key derivation or the text nonces.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// passwordIterations is the PBKDF2 round count for password stretching.
	passwordIterations = 200000

	// randAlphabet is the 64-character alphabet used for IVs, file keys,
	// and upload keys. Its size divides 256, so byte-mod mapping is unbiased.
	randAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
)

// DeriveMasterKeys stretches a login password with PBKDF2-HMAC-SHA-512
// (200 000 iterations, 64-byte output) and splits the result according to
// the account's auth version.
//
// Auth version 2 (current): the first 64 hex characters become the local
// master key and the SHA-512 of the remaining 64 becomes the password sent
// to the server. Auth version 1 (legacy) uses the full 128-character hex
// string for both.
//
// The returned values are lowercase hex strings.
func DeriveMasterKeys(password, salt string, authVersion int) (masterKey, loginPassword string, err error) {
	dk := pbkdf2.Key([]byte(password), []byte(salt), passwordIterations, 64, sha512.New)
	dkHex := hex.EncodeToString(dk)

	switch authVersion {
	case 1:
		return dkHex, dkHex, nil
	case 2:
		sum := sha512.Sum512([]byte(dkHex[64:]))
		return dkHex[:64], hex.EncodeToString(sum[:]), nil
	default:
		return "", "", fmt.Errorf("cryptox: unsupported auth version %d", authVersion)
	}
}

// deriveEnvelopeKey turns a printable envelope key into the 32-byte AES key
// used by the 002 envelope: PBKDF2-HMAC-SHA-512 with the key as its own salt
// and a single iteration. Legacy construction, kept byte-exact.
func deriveEnvelopeKey(key string) []byte {
	return pbkdf2.Key([]byte(key), []byte(key), 1, 32, sha512.New)
}

// DeriveNameHMACKey derives the per-identity key for filename hashing from
// the most recent master key and the lowercased account email.
func DeriveNameHMACKey(masterKey, email string) []byte {
	return pbkdf2.Key([]byte(masterKey), []byte(strings.ToLower(email)), 1, 32, sha512.New)
}

// HashName computes the deterministic server-side lookup hash of a filename:
// HMAC-SHA-256 of the lowercased name under the identity's name-hash key,
// encoded as lowercase hex.
func HashName(name string, hmacKey []byte) string {
	mac := hmac.New(sha256.New, hmacKey)
	mac.Write([]byte(strings.ToLower(name)))
	return hex.EncodeToString(mac.Sum(nil))
}

// RandomString returns a cryptographically random string of length n drawn
// from the 64-character alphabet A-Z a-z 0-9 - _.
func RandomString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("cryptox: random: %w", err)
	}
	for i, v := range b {
		b[i] = randAlphabet[int(v)%len(randAlphabet)]
	}
	return string(b), nil
}

// GenerateFileKey returns a fresh 32-character per-file key. The key's UTF-8
// bytes are used directly as the AES-256 key for chunk encryption and the
// key string is stored inside the file's metadata envelope.
func GenerateFileKey() (string, error) {
	return RandomString(32)
}

// NewUUID returns a fresh RFC 4122 version-4 identifier for files, folders,
// and uploads.
func NewUUID() string {
	return uuid.NewString()
}

// EncryptData encrypts a chunk of file content with AES-256-GCM under the
// given key. A fresh 12-character text IV is generated and prepended, so the
// result is IV || ciphertext || tag, the exact chunk format the storage
// servers expect.
func EncryptData(plaintext, key []byte) ([]byte, error) {
	iv, err := RandomString(12)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(iv)+len(plaintext)+gcm.Overhead())
	out = append(out, iv...)
	return gcm.Seal(out, []byte(iv), plaintext, nil), nil
}

// DecryptData decrypts a chunk produced by EncryptData: the first 12 bytes
// are the IV, the remainder is ciphertext plus tag.
func DecryptData(data, key []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("cryptox: chunk too short: %d bytes", len(data))
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, data[:12], data[12:], nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: decrypt chunk: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptox: gcm: %w", err)
	}
	return gcm, nil
}
