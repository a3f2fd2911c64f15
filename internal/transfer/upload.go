package transfer

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/cryptox"
	"github.com/CrispStrobe/filen-go/internal/models"
)

// timeNow is swapped in tests to pin the modification-time fallback.
var timeNow = time.Now

// UploadInput describes one upload. FileUUID, UploadKey, and
// LastUploadedChunk resume an interrupted upload: chunks up to and
// including LastUploadedChunk are re-read and hashed locally but not sent
// again. A fresh upload leaves FileUUID empty.
type UploadInput struct {
	LocalPath  string
	ParentUUID string

	// RemoteName overrides the uploaded name; empty means the local base name.
	RemoteName string

	FileUUID          string
	UploadKey         string
	LastUploadedChunk int

	// ModificationTime in ms overrides the local file's mtime; zero falls
	// back to the mtime, and to the wall clock if that is unusable.
	ModificationTime int64

	// OnStart runs for fresh uploads once the uuid and upload key are
	// reserved, before any chunk is sent. Returning an error aborts.
	OnStart func(fileUUID, uploadKey string) error

	// OnChunk runs after each chunk is stored.
	OnChunk func(index int, plaintextBytes int)
}

// UploadResult describes a finalized upload.
type UploadResult struct {
	FileUUID   string
	ParentUUID string
	Name       string
	Size       int64
	Chunks     int
	Hash       string
}

// Upload encrypts a local file chunk by chunk and finalizes it under the
// given parent folder. The upload key doubles as the file's content key so
// an interrupted upload can be resumed from the persisted triple alone.
func (e *engine) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.LocalPath == "" {
		return nil, fmt.Errorf("transfer: no local path")
	}
	if in.ParentUUID == "" {
		return nil, fmt.Errorf("transfer: no parent folder")
	}

	f, err := os.Open(in.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("transfer: open %s: %w", in.LocalPath, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("transfer: stat %s: %w", in.LocalPath, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("transfer: %s is a directory", in.LocalPath)
	}

	name := in.RemoteName
	if name == "" {
		name = filepath.Base(in.LocalPath)
	}
	mimeType := detectMime(name)
	modMs := in.ModificationTime
	if modMs <= 0 {
		modMs = fi.ModTime().UnixMilli()
	}
	if modMs <= 0 {
		modMs = timeNow().UnixMilli()
	}

	size := fi.Size()
	if size == 0 {
		return e.uploadEmpty(ctx, in.ParentUUID, name, mimeType, modMs)
	}

	resuming := in.FileUUID != ""
	var fileUUID, key string
	if resuming {
		fileUUID, key = in.FileUUID, in.UploadKey
		if key == "" {
			return nil, fmt.Errorf("transfer: resume of %s has no upload key", fileUUID)
		}
	} else {
		fileUUID = cryptox.NewUUID()
		key, err = cryptox.GenerateFileKey()
		if err != nil {
			return nil, err
		}
		if in.OnStart != nil {
			if err := in.OnStart(fileUUID, key); err != nil {
				return nil, fmt.Errorf("transfer: upload aborted: %w", err)
			}
		}
	}

	chunks := int((size + ChunkSize - 1) / ChunkSize)
	hasher := sha512.New()
	keyBytes := []byte(key)
	buf := make([]byte, ChunkSize)
	lastOK := -1
	if resuming {
		lastOK = in.LastUploadedChunk
	}

	for i := 0; i < chunks; i++ {
		chunkLen := size - int64(i)*ChunkSize
		if chunkLen > ChunkSize {
			chunkLen = ChunkSize
		}
		plain := buf[:chunkLen]
		if _, err := io.ReadFull(f, plain); err != nil {
			return nil, fmt.Errorf("transfer: read %s: %w", in.LocalPath, err)
		}
		hasher.Write(plain)
		if resuming && i <= in.LastUploadedChunk {
			continue
		}

		ct, err := cryptox.EncryptData(plain, keyBytes)
		if err != nil {
			return nil, err
		}
		sum := sha512.Sum512(ct)
		req := &api.ChunkUploadRequest{
			UUID:      fileUUID,
			Index:     i,
			Parent:    in.ParentUUID,
			UploadKey: key,
			Hash:      hex.EncodeToString(sum[:]),
		}
		if err := e.api.UploadChunk(ctx, req, ct); err != nil {
			return nil, &ChunkUploadError{FileUUID: fileUUID, UploadKey: key, LastChunk: lastOK, Err: err}
		}
		lastOK = i
		if in.OnChunk != nil {
			in.OnChunk(i, int(chunkLen))
		}
	}

	meta := &models.FileMetadata{
		Name:         name,
		Size:         size,
		Mime:         mimeType,
		Key:          key,
		Hash:         finishHash(hasher),
		LastModified: modMs,
	}
	if err := e.finalizeUpload(ctx, fileUUID, key, chunks, meta); err != nil {
		return nil, err
	}
	e.drv.Invalidate(in.ParentUUID)
	e.log.Info(ctx, "file uploaded", "name", name, "size", size, "chunks", chunks)
	return &UploadResult{
		FileUUID:   fileUUID,
		ParentUUID: in.ParentUUID,
		Name:       name,
		Size:       size,
		Chunks:     chunks,
		Hash:       meta.Hash,
	}, nil
}

// uploadEmpty finalizes a zero-byte file without any chunk traffic. Empty
// files record no content hash.
func (e *engine) uploadEmpty(ctx context.Context, parentUUID, name, mimeType string, modMs int64) (*UploadResult, error) {
	fileUUID := cryptox.NewUUID()
	key, err := cryptox.GenerateFileKey()
	if err != nil {
		return nil, err
	}
	meta := &models.FileMetadata{
		Name:         name,
		Size:         0,
		Mime:         mimeType,
		Key:          key,
		LastModified: modMs,
	}
	env, err := e.sealFileEnvelopes(key, meta)
	if err != nil {
		return nil, err
	}
	req := &api.UploadEmptyRequest{
		UUID:       fileUUID,
		Name:       env.name,
		NameHashed: e.drv.NameHash(name),
		Size:       env.size,
		Parent:     parentUUID,
		Mime:       env.mime,
		Metadata:   env.metadata,
		Version:    2,
	}
	if err := e.api.UploadEmpty(ctx, req); err != nil {
		return nil, fmt.Errorf("transfer: finalize %s: %w", name, err)
	}
	e.drv.Invalidate(parentUUID)
	e.log.Info(ctx, "empty file uploaded", "name", name)
	return &UploadResult{FileUUID: fileUUID, ParentUUID: parentUUID, Name: name}, nil
}

func (e *engine) finalizeUpload(ctx context.Context, fileUUID, key string, chunks int, meta *models.FileMetadata) error {
	env, err := e.sealFileEnvelopes(key, meta)
	if err != nil {
		return err
	}
	rm, err := cryptox.RandomString(32)
	if err != nil {
		return err
	}
	req := &api.UploadDoneRequest{
		UUID:       fileUUID,
		Name:       env.name,
		NameHashed: e.drv.NameHash(meta.Name),
		Size:       env.size,
		Chunks:     chunks,
		Mime:       env.mime,
		RM:         rm,
		Metadata:   env.metadata,
		Version:    2,
		UploadKey:  key,
	}
	if err := e.api.UploadDone(ctx, req); err != nil {
		return fmt.Errorf("transfer: finalize %s: %w", meta.Name, err)
	}
	return nil
}

// fileEnvelopes holds the encrypted fields of an upload finalization: name,
// size, and mime sealed under the file key, the full metadata record sealed
// under the master key.
type fileEnvelopes struct {
	name     string
	size     string
	mime     string
	metadata string
}

func (e *engine) sealFileEnvelopes(key string, meta *models.FileMetadata) (*fileEnvelopes, error) {
	nameEnc, err := cryptox.EncryptMetadata(meta.Name, key)
	if err != nil {
		return nil, err
	}
	sizeEnc, err := cryptox.EncryptMetadata(strconv.FormatInt(meta.Size, 10), key)
	if err != nil {
		return nil, err
	}
	mimeEnc, err := cryptox.EncryptMetadata(meta.Mime, key)
	if err != nil {
		return nil, err
	}
	metaEnc, err := models.EncodeFileMetadata(meta, e.drv.Identity().MasterKey())
	if err != nil {
		return nil, err
	}
	return &fileEnvelopes{name: nameEnc, size: sizeEnc, mime: mimeEnc, metadata: metaEnc}, nil
}

func detectMime(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func finishHash(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}
