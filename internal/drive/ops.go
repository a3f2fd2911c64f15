package drive

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/cryptox"
	"github.com/CrispStrobe/filen-go/internal/models"
)

// sleepFn is swapped in tests to skip the conflict-adoption delay.
var sleepFn = time.Sleep

// MkdirAll walks the path creating missing folders, mkdir -p style, and
// returns the uuid of the final component. Optional timestamps apply to the
// final component only; intermediate folders get none.
func (d *drive) MkdirAll(ctx context.Context, p string, opts MkdirOpts) (string, error) {
	parts := SplitPath(p)
	parentUUID := d.id.BaseFolderUUID
	for i, part := range parts {
		final := i == len(parts)-1
		uuid, err := d.ensureFolder(ctx, parentUUID, part, final, opts)
		if err != nil {
			return "", err
		}
		parentUUID = uuid
	}
	return parentUUID, nil
}

func (d *drive) ensureFolder(ctx context.Context, parentUUID, name string, final bool, opts MkdirOpts) (string, error) {
	folders, err := d.ListFolders(ctx, parentUUID)
	if err != nil {
		return "", err
	}
	if f := findFolder(folders, name); f != nil {
		return f.UUID, nil
	}

	nameEnc, err := models.EncodeFolderName(name, d.id.MasterKey())
	if err != nil {
		return "", fmt.Errorf("drive: encrypt name: %w", err)
	}
	req := &api.DirCreateRequest{
		UUID:       cryptox.NewUUID(),
		Name:       nameEnc,
		NameHashed: d.NameHash(name),
		Parent:     parentUUID,
	}
	if final {
		req.CreationTime = opts.CreationTime
		req.ModificationTime = opts.ModificationTime
	}

	created, err := d.api.DirCreate(ctx, req)
	if err != nil {
		if api.IsConflict(err) {
			// Lost a create race. Give the winner time to land, then adopt
			// whatever folder the fresh listing shows under this name.
			sleepFn(1 * time.Second)
			d.cache.Invalidate(parentUUID)
			folders, lerr := d.ListFolders(ctx, parentUUID)
			if lerr != nil {
				return "", lerr
			}
			if f := findFolder(folders, name); f != nil {
				d.log.Debug(ctx, "adopted folder after create conflict", "name", name, "uuid", f.UUID)
				return f.UUID, nil
			}
		}
		return "", fmt.Errorf("drive: create folder %q: %w", name, err)
	}
	d.cache.Invalidate(parentUUID)
	d.log.Debug(ctx, "folder created", "name", name, "uuid", created)
	return created, nil
}

// Move relocates a file or folder under a new parent folder. Moving to the
// parent it already has is a no-op.
func (d *drive) Move(ctx context.Context, sourcePath, destFolderPath string) error {
	item, err := d.Resolve(ctx, sourcePath)
	if err != nil {
		return err
	}
	if item.IsRoot() {
		return fmt.Errorf("drive: cannot move the drive root")
	}
	dest, err := d.ResolveFolder(ctx, destFolderPath)
	if err != nil {
		return err
	}
	if item.ParentUUID == dest.UUID {
		return nil
	}

	if err := d.api.Move(ctx, item.Kind, item.UUID, dest.UUID); err != nil {
		return fmt.Errorf("drive: move %s: %w", item.Path, err)
	}
	d.cache.Invalidate(item.ParentUUID)
	d.cache.Invalidate(dest.UUID)
	return nil
}

// Rename changes an item's name in place. Folder names are a single
// envelope; file renames rewrite both the per-file name envelope and the
// whole metadata envelope.
func (d *drive) Rename(ctx context.Context, p, newName string) error {
	if newName == "" || newName == "." || newName == ".." || strings.Contains(newName, "/") {
		return fmt.Errorf("drive: invalid name %q", newName)
	}
	item, err := d.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if item.IsRoot() {
		return fmt.Errorf("drive: cannot rename the drive root")
	}

	switch item.Kind {
	case models.KindFolder:
		nameEnc, err := models.EncodeFolderName(newName, d.id.MasterKey())
		if err != nil {
			return fmt.Errorf("drive: encrypt name: %w", err)
		}
		if err := d.api.DirRename(ctx, item.UUID, nameEnc, d.NameHash(newName)); err != nil {
			return fmt.Errorf("drive: rename %s: %w", item.Path, err)
		}
	case models.KindFile:
		if err := d.renameFile(ctx, item, newName); err != nil {
			return err
		}
	}
	d.cache.Invalidate(item.ParentUUID)
	return nil
}

func (d *drive) renameFile(ctx context.Context, item *Item, newName string) error {
	info, err := d.api.FileInfo(ctx, item.UUID)
	if err != nil {
		return fmt.Errorf("drive: fetch metadata for %s: %w", item.Path, err)
	}
	meta, err := models.DecodeFileMetadata(info.Metadata, d.id.MasterKeys)
	if err != nil {
		return fmt.Errorf("drive: %s: %w", item.Path, err)
	}
	meta.Name = newName

	metaEnc, err := models.EncodeFileMetadata(meta, d.id.MasterKey())
	if err != nil {
		return fmt.Errorf("drive: encrypt metadata: %w", err)
	}
	nameEnc, err := cryptox.EncryptMetadata(newName, meta.Key)
	if err != nil {
		return fmt.Errorf("drive: encrypt name: %w", err)
	}
	if err := d.api.FileRename(ctx, item.UUID, nameEnc, d.NameHash(newName), metaEnc); err != nil {
		return fmt.Errorf("drive: rename %s: %w", item.Path, err)
	}
	return nil
}

// Trash moves an item to the trash.
func (d *drive) Trash(ctx context.Context, p string) error {
	item, err := d.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if item.IsRoot() {
		return fmt.Errorf("drive: cannot trash the drive root")
	}

	if err := d.api.Trash(ctx, item.Kind, item.UUID); err != nil {
		return fmt.Errorf("drive: trash %s: %w", item.Path, err)
	}
	d.cache.Invalidate(item.ParentUUID)
	d.cache.Invalidate(TrashParent)
	return nil
}

// Restore puts a trashed item back where it came from; the service does not
// accept a different target.
func (d *drive) Restore(ctx context.Context, item *Item) error {
	if err := d.api.Restore(ctx, item.Kind, item.UUID); err != nil {
		return fmt.Errorf("drive: restore %s: %w", item.Name, err)
	}
	d.cache.Invalidate(TrashParent)
	if parent := d.restoredParent(ctx, item); parent != "" {
		d.cache.Invalidate(parent)
	}
	return nil
}

// restoredParent finds the parent an item went back to. The trash listing
// usually still carries the original parent; when it does not, ask the
// server for the item's record.
func (d *drive) restoredParent(ctx context.Context, item *Item) string {
	var parent string
	switch {
	case item.Folder != nil:
		parent = item.Folder.ParentUUID
	case item.File != nil:
		parent = item.File.ParentUUID
	}
	if parent != "" && parent != TrashParent {
		return parent
	}

	switch item.Kind {
	case models.KindFolder:
		if info, err := d.api.DirInfo(ctx, item.UUID); err == nil {
			return info.Parent
		}
	case models.KindFile:
		if info, err := d.api.FileInfo(ctx, item.UUID); err == nil {
			return info.Parent
		}
	}
	return ""
}

// DeletePermanent removes an item for good. There is no undo.
func (d *drive) DeletePermanent(ctx context.Context, item *Item) error {
	if item.IsRoot() {
		return fmt.Errorf("drive: cannot delete the drive root")
	}
	if err := d.api.DeletePermanent(ctx, item.Kind, item.UUID); err != nil {
		return fmt.Errorf("drive: delete %s: %w", item.Path, err)
	}
	d.cache.Invalidate(item.ParentUUID)
	return nil
}
