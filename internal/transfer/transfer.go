// Package transfer moves file content between local disk and the storage
// hosts: chunked encrypt-and-upload, chunked download-and-decrypt with
// optional byte ranges, and checksum verification. One chunk is one MiB of
// plaintext; chunk ciphertext travels and is hashed as an opaque body.
package transfer

import (
	"context"
	"fmt"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/drive"
	"github.com/CrispStrobe/filen-go/internal/logging"
	"github.com/CrispStrobe/filen-go/internal/models"
)

// ChunkSize is the plaintext chunk size. Fixed by the protocol; every other
// client splits at the same boundary.
const ChunkSize = 1 << 20

// Engine is the transfer layer. Uploads and downloads run sequentially,
// chunk by chunk; callers that want parallelism run multiple engines.
type Engine interface {
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)
	Download(ctx context.Context, in DownloadInput) (string, error)
	Verify(file *models.File, localPath string) error
}

type engine struct {
	api api.Client
	drv drive.Drive
	log logging.Logger
}

// New builds a transfer engine on top of an authenticated api client and a
// drive for name hashing and cache invalidation.
func New(client api.Client, drv drive.Drive, log logging.Logger) Engine {
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	return &engine{api: client, drv: drv, log: log}
}

// ChunkUploadError reports an upload that died partway through its chunks.
// It carries everything needed to resume: the reserved file uuid, the
// upload key (which is also the file's encryption key), and the index of
// the last chunk that was stored, -1 when none was.
type ChunkUploadError struct {
	FileUUID  string
	UploadKey string
	LastChunk int
	Err       error
}

func (e *ChunkUploadError) Error() string {
	return fmt.Sprintf("transfer: upload chunk %d of %s: %v", e.LastChunk+1, e.FileUUID, e.Err)
}

func (e *ChunkUploadError) Unwrap() error {
	return e.Err
}
