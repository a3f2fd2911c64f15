package transfer

import (
	"crypto/sha512"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/common"
	"github.com/CrispStrobe/filen-go/internal/models"
)

// Verify streams a local file through SHA-512 and compares the digest with
// the hash recorded in the remote metadata. Files without a recorded hash
// cannot be verified and report common.ErrNoChecksum.
func (e *engine) Verify(file *models.File, localPath string) error {
	if file.Hash == "" {
		return fmt.Errorf("transfer: %s: %w", file.Name, common.ErrNoChecksum)
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("transfer: open %s: %w", localPath, err)
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return fmt.Errorf("transfer: read %s: %w", localPath, err)
	}
	got := finishHash(h)
	if !strings.EqualFold(got, file.Hash) {
		return fmt.Errorf("transfer: %s: %w: local %.16s..., remote %.16s...", localPath, common.ErrIntegrityMismatch, got, file.Hash)
	}
	return nil
}
