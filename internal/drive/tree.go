package drive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/models"
)

// SortFoldersForDisplay orders folders case-insensitively by name, exact
// name as tie-break, so output is deterministic.
func SortFoldersForDisplay(folders []models.Folder) {
	sort.SliceStable(folders, func(i, j int) bool {
		a, b := strings.ToLower(folders[i].Name), strings.ToLower(folders[j].Name)
		if a != b {
			return a < b
		}
		return folders[i].Name < folders[j].Name
	})
}

// SortFilesForDisplay orders files the same way as SortFoldersForDisplay.
func SortFilesForDisplay(files []models.File) {
	sort.SliceStable(files, func(i, j int) bool {
		a, b := strings.ToLower(files[i].Name), strings.ToLower(files[j].Name)
		if a != b {
			return a < b
		}
		return files[i].Name < files[j].Name
	})
}

// Tree prints the subtree at startPath with box-drawing connectors, folders
// before files, each group sorted for display. maxDepth is the number of
// levels below the start to print; -1 means all of them.
func (d *drive) Tree(ctx context.Context, w io.Writer, startPath string, maxDepth int) error {
	start, err := d.ResolveFolder(ctx, startPath)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, start.Path); err != nil {
		return err
	}
	if maxDepth == 0 {
		return nil
	}
	return d.treeLevel(ctx, w, start.UUID, "", 1, maxDepth)
}

// treeLevel prints one folder's entries at the given level and recurses
// into subfolders while level < maxDepth.
func (d *drive) treeLevel(ctx context.Context, w io.Writer, parentUUID, prefix string, level, maxDepth int) error {
	folders, files, err := d.List(ctx, parentUUID)
	if err != nil {
		return err
	}
	SortFoldersForDisplay(folders)
	SortFilesForDisplay(files)

	type node struct {
		name   string
		uuid   string
		folder bool
	}
	nodes := make([]node, 0, len(folders)+len(files))
	for _, f := range folders {
		nodes = append(nodes, node{name: f.Name, uuid: f.UUID, folder: true})
	}
	for _, f := range files {
		nodes = append(nodes, node{name: f.Name, folder: false})
	}

	for i, n := range nodes {
		connector, childPrefix := "├── ", prefix+"│   "
		if i == len(nodes)-1 {
			connector, childPrefix = "└── ", prefix+"    "
		}
		if _, err := fmt.Fprintln(w, prefix+connector+n.name); err != nil {
			return err
		}
		if n.folder && (maxDepth < 0 || level < maxDepth) {
			if err := d.treeLevel(ctx, w, n.uuid, childPrefix, level+1, maxDepth); err != nil {
				return err
			}
		}
	}
	return nil
}
