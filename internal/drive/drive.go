// Package drive presents the remote file tree as POSIX paths: cached
// listings, path resolution, and the folder/file mutations. All names and
// metadata are decrypted through the identity's master key ring; items no
// key can open are listed as placeholders and cannot be addressed by path.
package drive

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/cryptox"
	"github.com/CrispStrobe/filen-go/internal/logging"
	"github.com/CrispStrobe/filen-go/internal/models"
)

// TrashParent is the pseudo parent uuid the service uses for trash listings.
const TrashParent = "trash"

// Item is a resolved path: one folder or file plus where it lives.
type Item struct {
	Kind       models.ItemKind
	UUID       string
	Name       string
	Path       string
	ParentUUID string

	// Folder is set for folder items below the root; File for file items.
	Folder *models.Folder
	File   *models.File
}

// IsRoot reports whether the item is the drive root.
func (it *Item) IsRoot() bool {
	return it.Kind == models.KindFolder && it.ParentUUID == ""
}

// PathNotFoundError reports the first path component that failed to
// resolve; Path holds the partial path up to and including it.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return "path not found: " + e.Path
}

// Match is one find result.
type Match struct {
	Path string
	File models.File
}

// MkdirOpts carries optional millisecond timestamps for the final created
// component of a MkdirAll walk. Zero means "let the server pick".
type MkdirOpts struct {
	CreationTime     int64
	ModificationTime int64
}

// Drive is the path-addressed view of the remote tree.
type Drive interface {
	// Identity returns the logged-in identity the drive was built for.
	Identity() *models.Identity

	// NameHash computes the server-side lookup hash of a plaintext name.
	NameHash(name string) string

	List(ctx context.Context, parentUUID string) ([]models.Folder, []models.File, error)
	ListFolders(ctx context.Context, parentUUID string) ([]models.Folder, error)
	ListFiles(ctx context.Context, parentUUID string) ([]models.File, error)
	Invalidate(parentUUID string)

	Resolve(ctx context.Context, p string) (*Item, error)
	ResolveFolder(ctx context.Context, p string) (*Item, error)
	ResolveTrash(ctx context.Context, name string) (*Item, error)
	FileByUUID(ctx context.Context, uuid string) (*models.File, error)

	MkdirAll(ctx context.Context, p string, opts MkdirOpts) (string, error)
	Move(ctx context.Context, sourcePath, destFolderPath string) error
	Rename(ctx context.Context, p, newName string) error
	Trash(ctx context.Context, p string) error
	Restore(ctx context.Context, item *Item) error
	DeletePermanent(ctx context.Context, item *Item) error

	Find(ctx context.Context, startPath, pattern string, maxDepth int, fn func(m Match) error) error
	Tree(ctx context.Context, w io.Writer, startPath string, maxDepth int) error
}

type drive struct {
	api     api.Client
	id      *models.Identity
	cache   *ListingCache
	log     logging.Logger
	hmacKey []byte
}

var _ Drive = (*drive)(nil)

// New builds a Drive for a logged-in identity. The identity must carry at
// least one master key and the base folder uuid.
func New(client api.Client, id *models.Identity, cache *ListingCache, log logging.Logger) (Drive, error) {
	if id == nil || id.MasterKey() == "" {
		return nil, fmt.Errorf("drive: identity has no master keys")
	}
	if id.BaseFolderUUID == "" {
		return nil, fmt.Errorf("drive: identity has no base folder")
	}
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	return &drive{
		api:     client,
		id:      id,
		cache:   cache,
		log:     log,
		hmacKey: cryptox.DeriveNameHMACKey(id.MasterKey(), id.Email),
	}, nil
}

func (d *drive) Identity() *models.Identity {
	return d.id
}

func (d *drive) NameHash(name string) string {
	return cryptox.HashName(name, d.hmacKey)
}

func (d *drive) Invalidate(parentUUID string) {
	d.cache.Invalidate(parentUUID)
}

// List returns both halves of a folder level, fetching and decrypting once
// when either half is stale.
func (d *drive) List(ctx context.Context, parentUUID string) ([]models.Folder, []models.File, error) {
	folders, fok := d.cache.GetFolders(parentUUID)
	files, lok := d.cache.GetFiles(parentUUID)
	if fok && lok {
		return folders, files, nil
	}

	resp, err := d.api.DirContent(ctx, parentUUID, false)
	if err != nil {
		return nil, nil, err
	}
	folders = d.decodeFolders(ctx, resp.Folders)
	files = d.decodeFiles(ctx, resp.Uploads)
	d.cache.PutFolders(parentUUID, folders)
	d.cache.PutFiles(parentUUID, files)
	return copyFolders(folders), copyFiles(files), nil
}

// ListFolders returns the folder half of a level. Cache misses are served
// with a folders-only fetch; the resolver walks many levels it never needs
// files for.
func (d *drive) ListFolders(ctx context.Context, parentUUID string) ([]models.Folder, error) {
	if folders, ok := d.cache.GetFolders(parentUUID); ok {
		return folders, nil
	}

	resp, err := d.api.DirContent(ctx, parentUUID, true)
	if err != nil {
		return nil, err
	}
	folders := d.decodeFolders(ctx, resp.Folders)
	d.cache.PutFolders(parentUUID, folders)
	return copyFolders(folders), nil
}

func (d *drive) ListFiles(ctx context.Context, parentUUID string) ([]models.File, error) {
	if files, ok := d.cache.GetFiles(parentUUID); ok {
		return files, nil
	}

	_, files, err := d.List(ctx, parentUUID)
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (d *drive) decodeFolders(ctx context.Context, recs []models.FolderRecord) []models.Folder {
	out := make([]models.Folder, 0, len(recs))
	encrypted := 0
	for _, rec := range recs {
		f := models.DecodeFolder(rec, d.id.MasterKeys)
		if f.Encrypted {
			encrypted++
		}
		out = append(out, f)
	}
	if encrypted > 0 {
		d.log.Warn(ctx, "folders with undecryptable names", "count", encrypted)
	}
	return out
}

func (d *drive) decodeFiles(ctx context.Context, recs []models.FileRecord) []models.File {
	out := make([]models.File, 0, len(recs))
	encrypted := 0
	for _, rec := range recs {
		f := models.DecodeFile(rec, d.id.MasterKeys)
		if f.Encrypted {
			encrypted++
		}
		out = append(out, f)
	}
	if encrypted > 0 {
		d.log.Warn(ctx, "files with undecryptable metadata", "count", encrypted)
	}
	return out
}

// Resolve walks a POSIX path from the root. At non-terminal components only
// folders are considered; at the terminal component a folder wins over a
// file of the same name. Matching is exact and case-sensitive.
func (d *drive) Resolve(ctx context.Context, p string) (*Item, error) {
	parts := SplitPath(p)
	if len(parts) == 0 {
		return d.rootItem(), nil
	}

	parentUUID := d.id.BaseFolderUUID
	resolved := ""
	last := len(parts) - 1
	for i, part := range parts {
		resolved += "/" + part
		if i < last {
			folders, err := d.ListFolders(ctx, parentUUID)
			if err != nil {
				return nil, err
			}
			f := findFolder(folders, part)
			if f == nil {
				return nil, &PathNotFoundError{Path: resolved}
			}
			parentUUID = f.UUID
			continue
		}

		folders, files, err := d.List(ctx, parentUUID)
		if err != nil {
			return nil, err
		}
		if f := findFolder(folders, part); f != nil {
			return &Item{
				Kind:       models.KindFolder,
				UUID:       f.UUID,
				Name:       f.Name,
				Path:       resolved,
				ParentUUID: parentUUID,
				Folder:     f,
			}, nil
		}
		if f := findFile(files, part); f != nil {
			return &Item{
				Kind:       models.KindFile,
				UUID:       f.UUID,
				Name:       f.Name,
				Path:       resolved,
				ParentUUID: parentUUID,
				File:       f,
			}, nil
		}
		return nil, &PathNotFoundError{Path: resolved}
	}
	return nil, &PathNotFoundError{Path: p}
}

// ResolveFolder resolves a path and requires the result to be a folder.
func (d *drive) ResolveFolder(ctx context.Context, p string) (*Item, error) {
	item, err := d.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}
	if item.Kind != models.KindFolder {
		return nil, fmt.Errorf("drive: %s is not a folder", item.Path)
	}
	return item, nil
}

// ResolveTrash finds an item in the trash listing by its decrypted name,
// folders first.
func (d *drive) ResolveTrash(ctx context.Context, name string) (*Item, error) {
	folders, files, err := d.List(ctx, TrashParent)
	if err != nil {
		return nil, err
	}
	if f := findFolder(folders, name); f != nil {
		return &Item{
			Kind:       models.KindFolder,
			UUID:       f.UUID,
			Name:       f.Name,
			Path:       name,
			ParentUUID: TrashParent,
			Folder:     f,
		}, nil
	}
	if f := findFile(files, name); f != nil {
		return &Item{
			Kind:       models.KindFile,
			UUID:       f.UUID,
			Name:       f.Name,
			Path:       name,
			ParentUUID: TrashParent,
			File:       f,
		}, nil
	}
	return nil, &PathNotFoundError{Path: name}
}

// FileByUUID fetches and decrypts a single file record, bypassing path
// resolution. Interrupted downloads are resumed by uuid, not by path.
func (d *drive) FileByUUID(ctx context.Context, uuid string) (*models.File, error) {
	info, err := d.api.FileInfo(ctx, uuid)
	if err != nil {
		return nil, err
	}
	meta, err := models.DecodeFileMetadata(info.Metadata, d.id.MasterKeys)
	if err != nil {
		return nil, fmt.Errorf("drive: file %s: %w", uuid, err)
	}
	return &models.File{
		UUID:         uuid,
		ParentUUID:   info.Parent,
		Name:         meta.Name,
		Size:         meta.Size,
		Chunks:       info.Chunks,
		MimeType:     meta.Mime,
		FileKey:      meta.Key,
		Hash:         meta.Hash,
		LastModified: meta.LastModified,
		Region:       info.Region,
		Bucket:       info.Bucket,
	}, nil
}

func (d *drive) rootItem() *Item {
	return &Item{
		Kind: models.KindFolder,
		UUID: d.id.BaseFolderUUID,
		Name: "/",
		Path: "/",
	}
}

// SplitPath normalizes a POSIX path lexically (".." and "." are resolved,
// never walked) and returns its components; nil means the root.
func SplitPath(p string) []string {
	clean := path.Clean("/" + p)
	trimmed := strings.Trim(clean, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Undecryptable items keep the placeholder name and cannot be matched.
func findFolder(folders []models.Folder, name string) *models.Folder {
	for i := range folders {
		if !folders[i].Encrypted && folders[i].Name == name {
			return &folders[i]
		}
	}
	return nil
}

func findFile(files []models.File, name string) *models.File {
	for i := range files {
		if !files[i].Encrypted && files[i].Name == name {
			return &files[i]
		}
	}
	return nil
}

func copyFolders(in []models.Folder) []models.Folder {
	out := make([]models.Folder, len(in))
	copy(out, in)
	return out
}

func copyFiles(in []models.File) []models.File {
	out := make([]models.File, len(in))
	copy(out, in)
	return out
}
