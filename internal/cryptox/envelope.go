package cryptox

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/common"
)

// envelopeVersion tags every metadata envelope this client writes. Older
// versions ("001") are not produced anymore and are rejected on decode.
const envelopeVersion = "002"

// EncryptMetadata seals a plaintext string into a version-002 text envelope:
//
//	"002" || iv (12 ASCII chars) || base64(AES-256-GCM(ek, iv, plaintext))
//
// where ek is the single-iteration PBKDF2 derivation of the given key and
// the IV's UTF-8 bytes are the GCM nonce.
func EncryptMetadata(plaintext, key string) (string, error) {
	iv, err := RandomString(12)
	if err != nil {
		return "", err
	}
	gcm, err := newGCM(deriveEnvelopeKey(key))
	if err != nil {
		return "", err
	}
	ct := gcm.Seal(nil, []byte(iv), []byte(plaintext), nil)
	return envelopeVersion + iv + base64.StdEncoding.EncodeToString(ct), nil
}

// DecryptMetadata opens a version-002 envelope with a single key. It fails
// on any other version prefix and on authentication failure.
func DecryptMetadata(envelope, key string) (string, error) {
	if len(envelope) < 15 || !strings.HasPrefix(envelope, envelopeVersion) {
		return "", fmt.Errorf("cryptox: unsupported envelope: %w", common.ErrDecryptFailed)
	}
	iv := envelope[3:15]
	ct, err := base64.StdEncoding.DecodeString(envelope[15:])
	if err != nil {
		return "", fmt.Errorf("cryptox: envelope base64: %w", common.ErrDecryptFailed)
	}
	gcm, err := newGCM(deriveEnvelopeKey(key))
	if err != nil {
		return "", err
	}
	plaintext, err := gcm.Open(nil, []byte(iv), ct, nil)
	if err != nil {
		return "", common.ErrDecryptFailed
	}
	return string(plaintext), nil
}

// DecryptMetadataAny opens an envelope against a master-key ring, trying the
// most recent key first. It returns the first successful plaintext and
// common.ErrDecryptFailed once every key has been exhausted.
func DecryptMetadataAny(envelope string, keys []string) (string, error) {
	for i := len(keys) - 1; i >= 0; i-- {
		plaintext, err := DecryptMetadata(envelope, keys[i])
		if err == nil {
			return plaintext, nil
		}
	}
	return "", common.ErrDecryptFailed
}
