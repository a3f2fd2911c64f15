package drive

import (
	"context"
	"fmt"
	"path"
	"strings"
)

// Find walks the subtree at startPath with an iterative depth-first
// traversal and calls fn for every file whose name matches the glob
// pattern, case-insensitively. Folders are traversed, never matched.
//
// maxDepth follows find(1): entries directly inside the start folder are at
// depth 1, and only entries at depth <= maxDepth are considered; -1 means
// unbounded. A non-nil error from fn stops the walk and is returned.
func (d *drive) Find(ctx context.Context, startPath, pattern string, maxDepth int, fn func(m Match) error) error {
	start, err := d.ResolveFolder(ctx, startPath)
	if err != nil {
		return err
	}

	lowered := strings.ToLower(pattern)
	if _, err := path.Match(lowered, ""); err != nil {
		return fmt.Errorf("drive: bad pattern %q: %w", pattern, err)
	}

	type frame struct {
		uuid  string
		path  string
		depth int
	}
	root := frame{uuid: start.UUID, path: strings.TrimSuffix(start.Path, "/"), depth: 0}
	stack := []frame{root}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		childDepth := cur.depth + 1
		if maxDepth >= 0 && childDepth > maxDepth {
			continue
		}

		folders, files, err := d.List(ctx, cur.uuid)
		if err != nil {
			return err
		}

		for i := range files {
			if files[i].Encrypted {
				continue
			}
			if ok, _ := path.Match(lowered, strings.ToLower(files[i].Name)); ok {
				m := Match{Path: cur.path + "/" + files[i].Name, File: files[i]}
				if err := fn(m); err != nil {
					return err
				}
			}
		}

		if maxDepth >= 0 && childDepth >= maxDepth {
			continue
		}
		// Push in reverse so the stack pops folders in listing order.
		for i := len(folders) - 1; i >= 0; i-- {
			if folders[i].Encrypted {
				continue
			}
			stack = append(stack, frame{
				uuid:  folders[i].UUID,
				path:  cur.path + "/" + folders[i].Name,
				depth: childDepth,
			})
		}
	}
	return nil
}
