// Package apitest provides a configurable in-memory api.Client for tests.
// Each method delegates to its Fn field when set and otherwise returns an
// empty success, recording the call name either way.
package apitest

import (
	"context"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/models"
)

type Fake struct {
	SetAPIKeyFn       func(key string)
	AuthInfoFn        func(ctx context.Context, email string) (*api.AuthInfoResponse, error)
	LoginFn           func(ctx context.Context, email, password, twoFactorCode string, authVersion int) (*api.LoginResponse, error)
	BaseFolderFn      func(ctx context.Context) (string, error)
	DirContentFn      func(ctx context.Context, uuid string, foldersOnly bool) (*api.DirContentResponse, error)
	FileInfoFn        func(ctx context.Context, uuid string) (*api.FileInfoResponse, error)
	DirInfoFn         func(ctx context.Context, uuid string) (*api.DirInfoResponse, error)
	FileExistsFn      func(ctx context.Context, parent, nameHashed string) (*api.FileExistsResponse, error)
	DirCreateFn       func(ctx context.Context, req *api.DirCreateRequest) (string, error)
	UploadEmptyFn     func(ctx context.Context, req *api.UploadEmptyRequest) error
	UploadDoneFn      func(ctx context.Context, req *api.UploadDoneRequest) error
	UploadChunkFn     func(ctx context.Context, req *api.ChunkUploadRequest, data []byte) error
	DownloadChunkFn   func(ctx context.Context, region, bucket, uuid string, index int) ([]byte, error)
	MoveFn            func(ctx context.Context, kind models.ItemKind, uuid, parent string) error
	TrashFn           func(ctx context.Context, kind models.ItemKind, uuid string) error
	RestoreFn         func(ctx context.Context, kind models.ItemKind, uuid string) error
	DeletePermanentFn func(ctx context.Context, kind models.ItemKind, uuid string) error
	DirRenameFn       func(ctx context.Context, uuid, name, nameHashed string) error
	FileRenameFn      func(ctx context.Context, uuid, name, nameHashed, metadata string) error

	// Calls lists method names in invocation order.
	Calls []string
}

var _ api.Client = (*Fake)(nil)

func (f *Fake) record(name string) {
	f.Calls = append(f.Calls, name)
}

// CallCount returns how many times the named method was invoked.
func (f *Fake) CallCount(name string) int {
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *Fake) SetAPIKey(key string) {
	f.record("SetAPIKey")
	if f.SetAPIKeyFn != nil {
		f.SetAPIKeyFn(key)
	}
}

func (f *Fake) AuthInfo(ctx context.Context, email string) (*api.AuthInfoResponse, error) {
	f.record("AuthInfo")
	if f.AuthInfoFn != nil {
		return f.AuthInfoFn(ctx, email)
	}
	return &api.AuthInfoResponse{}, nil
}

func (f *Fake) Login(ctx context.Context, email, password, twoFactorCode string, authVersion int) (*api.LoginResponse, error) {
	f.record("Login")
	if f.LoginFn != nil {
		return f.LoginFn(ctx, email, password, twoFactorCode, authVersion)
	}
	return &api.LoginResponse{}, nil
}

func (f *Fake) BaseFolder(ctx context.Context) (string, error) {
	f.record("BaseFolder")
	if f.BaseFolderFn != nil {
		return f.BaseFolderFn(ctx)
	}
	return "", nil
}

func (f *Fake) DirContent(ctx context.Context, uuid string, foldersOnly bool) (*api.DirContentResponse, error) {
	f.record("DirContent")
	if f.DirContentFn != nil {
		return f.DirContentFn(ctx, uuid, foldersOnly)
	}
	return &api.DirContentResponse{}, nil
}

func (f *Fake) FileInfo(ctx context.Context, uuid string) (*api.FileInfoResponse, error) {
	f.record("FileInfo")
	if f.FileInfoFn != nil {
		return f.FileInfoFn(ctx, uuid)
	}
	return &api.FileInfoResponse{}, nil
}

func (f *Fake) DirInfo(ctx context.Context, uuid string) (*api.DirInfoResponse, error) {
	f.record("DirInfo")
	if f.DirInfoFn != nil {
		return f.DirInfoFn(ctx, uuid)
	}
	return &api.DirInfoResponse{}, nil
}

func (f *Fake) FileExists(ctx context.Context, parent, nameHashed string) (*api.FileExistsResponse, error) {
	f.record("FileExists")
	if f.FileExistsFn != nil {
		return f.FileExistsFn(ctx, parent, nameHashed)
	}
	return &api.FileExistsResponse{}, nil
}

func (f *Fake) DirCreate(ctx context.Context, req *api.DirCreateRequest) (string, error) {
	f.record("DirCreate")
	if f.DirCreateFn != nil {
		return f.DirCreateFn(ctx, req)
	}
	return req.UUID, nil
}

func (f *Fake) UploadEmpty(ctx context.Context, req *api.UploadEmptyRequest) error {
	f.record("UploadEmpty")
	if f.UploadEmptyFn != nil {
		return f.UploadEmptyFn(ctx, req)
	}
	return nil
}

func (f *Fake) UploadDone(ctx context.Context, req *api.UploadDoneRequest) error {
	f.record("UploadDone")
	if f.UploadDoneFn != nil {
		return f.UploadDoneFn(ctx, req)
	}
	return nil
}

func (f *Fake) UploadChunk(ctx context.Context, req *api.ChunkUploadRequest, data []byte) error {
	f.record("UploadChunk")
	if f.UploadChunkFn != nil {
		return f.UploadChunkFn(ctx, req, data)
	}
	return nil
}

func (f *Fake) DownloadChunk(ctx context.Context, region, bucket, uuid string, index int) ([]byte, error) {
	f.record("DownloadChunk")
	if f.DownloadChunkFn != nil {
		return f.DownloadChunkFn(ctx, region, bucket, uuid, index)
	}
	return nil, nil
}

func (f *Fake) Move(ctx context.Context, kind models.ItemKind, uuid, parent string) error {
	f.record("Move")
	if f.MoveFn != nil {
		return f.MoveFn(ctx, kind, uuid, parent)
	}
	return nil
}

func (f *Fake) Trash(ctx context.Context, kind models.ItemKind, uuid string) error {
	f.record("Trash")
	if f.TrashFn != nil {
		return f.TrashFn(ctx, kind, uuid)
	}
	return nil
}

func (f *Fake) Restore(ctx context.Context, kind models.ItemKind, uuid string) error {
	f.record("Restore")
	if f.RestoreFn != nil {
		return f.RestoreFn(ctx, kind, uuid)
	}
	return nil
}

func (f *Fake) DeletePermanent(ctx context.Context, kind models.ItemKind, uuid string) error {
	f.record("DeletePermanent")
	if f.DeletePermanentFn != nil {
		return f.DeletePermanentFn(ctx, kind, uuid)
	}
	return nil
}

func (f *Fake) DirRename(ctx context.Context, uuid, name, nameHashed string) error {
	f.record("DirRename")
	if f.DirRenameFn != nil {
		return f.DirRenameFn(ctx, uuid, name, nameHashed)
	}
	return nil
}

func (f *Fake) FileRename(ctx context.Context, uuid, name, nameHashed, metadata string) error {
	f.record("FileRename")
	if f.FileRenameFn != nil {
		return f.FileRenameFn(ctx, uuid, name, nameHashed, metadata)
	}
	return nil
}
