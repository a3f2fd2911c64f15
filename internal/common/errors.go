// Package common defines shared sentinel errors and small helpers used
// across the filen-go client layers. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// ErrAuthMissing means no credentials are stored on disk or the api key
	// is empty; the user has to log in first.
	ErrAuthMissing = errors.New("not logged in")

	// ErrDecryptFailed means an encrypted payload could not be decrypted
	// with any of the identity's master keys.
	ErrDecryptFailed = errors.New("decryption failed")

	// ErrIntegrityMismatch means a local file's hash differs from the hash
	// recorded in the remote metadata.
	ErrIntegrityMismatch = errors.New("integrity mismatch")

	// ErrNoChecksum means the remote metadata records no content hash, so
	// there is nothing to verify against. Empty files and files written by
	// old clients have no hash.
	ErrNoChecksum = errors.New("no checksum recorded")

	// ErrUnsupported marks operations the service cannot perform, such as
	// copying a folder.
	ErrUnsupported = errors.New("operation not supported")
)
