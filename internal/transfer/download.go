package transfer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/CrispStrobe/filen-go/internal/cryptox"
	"github.com/CrispStrobe/filen-go/internal/filex"
	"github.com/CrispStrobe/filen-go/internal/models"
)

// ByteRange selects [Start, End] of a file's plaintext, end-inclusive.
type ByteRange struct {
	Start int64
	End   int64
}

// DownloadInput describes one download. An empty DestPath writes the file's
// decrypted name into the working directory; a DestPath that is an existing
// directory places the file inside it.
type DownloadInput struct {
	File     *models.File
	DestPath string

	// Range extracts a plaintext byte range instead of the whole file.
	Range *ByteRange

	// OnChunk runs after each chunk is written.
	OnChunk func(index int, plaintextBytes int)
}

// Download fetches and decrypts a file to local disk, returning the path it
// wrote. Full downloads carry the remote modification time over to the
// local file; range extracts do not, since they are not replicas.
func (e *engine) Download(ctx context.Context, in DownloadInput) (string, error) {
	file := in.File
	if file == nil {
		return "", fmt.Errorf("transfer: no file")
	}
	if file.Encrypted {
		return "", fmt.Errorf("transfer: %s: metadata is undecryptable", file.UUID)
	}
	if file.FileKey == "" && file.Size > 0 {
		return "", fmt.Errorf("transfer: %s: metadata has no file key", file.Name)
	}

	rng := in.Range
	if rng != nil {
		if rng.Start < 0 || rng.End < rng.Start || rng.Start >= file.Size {
			return "", fmt.Errorf("transfer: range %d-%d out of bounds for %d bytes", rng.Start, rng.End, file.Size)
		}
		if rng.End >= file.Size {
			rng = &ByteRange{Start: rng.Start, End: file.Size - 1}
		}
	}

	dest := resolveDest(in.DestPath, file.Name)
	if err := filex.EnsureParentDir(dest); err != nil {
		return "", err
	}
	w, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("transfer: create %s: %w", dest, err)
	}

	if rng == nil {
		err = e.downloadFull(ctx, w, file, in.OnChunk)
	} else {
		err = e.downloadRange(ctx, w, file, *rng, in.OnChunk)
	}
	if cerr := w.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("transfer: close %s: %w", dest, cerr)
	}
	if err != nil {
		return "", err
	}

	if rng == nil {
		if err := filex.SetModTimeMillis(dest, file.LastModified); err != nil {
			e.log.Warn(ctx, "could not set modification time", "path", dest, "error", err)
		}
		e.log.Info(ctx, "file downloaded", "name", file.Name, "size", file.Size, "dest", dest)
	} else {
		e.log.Info(ctx, "range downloaded", "name", file.Name, "start", rng.Start, "end", rng.End, "dest", dest)
	}
	return dest, nil
}

func (e *engine) downloadFull(ctx context.Context, w *os.File, file *models.File, onChunk func(int, int)) error {
	key := []byte(file.FileKey)
	for i := 0; i < file.Chunks; i++ {
		plain, err := e.fetchChunk(ctx, file, key, i)
		if err != nil {
			return err
		}
		if _, err := w.Write(plain); err != nil {
			return fmt.Errorf("transfer: write %s: %w", w.Name(), err)
		}
		if onChunk != nil {
			onChunk(i, len(plain))
		}
	}
	return nil
}

// downloadRange fetches only the chunks the range touches and slices the
// boundary chunks down to the requested bytes.
func (e *engine) downloadRange(ctx context.Context, w *os.File, file *models.File, rng ByteRange, onChunk func(int, int)) error {
	key := []byte(file.FileKey)
	startChunk := int(rng.Start / ChunkSize)
	endChunk := int(rng.End / ChunkSize)

	for i := startChunk; i <= endChunk; i++ {
		plain, err := e.fetchChunk(ctx, file, key, i)
		if err != nil {
			return err
		}
		lo, hi := int64(0), int64(len(plain))
		if i == startChunk {
			lo = rng.Start - int64(i)*ChunkSize
		}
		if i == endChunk {
			if want := rng.End - int64(i)*ChunkSize + 1; want < hi {
				hi = want
			}
		}
		if lo > hi {
			lo = hi
		}
		if _, err := w.Write(plain[lo:hi]); err != nil {
			return fmt.Errorf("transfer: write %s: %w", w.Name(), err)
		}
		if onChunk != nil {
			onChunk(i, int(hi-lo))
		}
	}
	return nil
}

func (e *engine) fetchChunk(ctx context.Context, file *models.File, key []byte, index int) ([]byte, error) {
	data, err := e.api.DownloadChunk(ctx, file.Region, file.Bucket, file.UUID, index)
	if err != nil {
		return nil, fmt.Errorf("transfer: download chunk %d of %s: %w", index, file.Name, err)
	}
	plain, err := cryptox.DecryptData(data, key)
	if err != nil {
		return nil, fmt.Errorf("transfer: chunk %d of %s: %w", index, file.Name, err)
	}
	return plain, nil
}

func resolveDest(destPath, name string) string {
	if destPath == "" {
		return name
	}
	if fi, err := os.Stat(destPath); err == nil && fi.IsDir() {
		return filepath.Join(destPath, name)
	}
	return destPath
}
