package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/CrispStrobe/filen-go/internal/drive"
	"github.com/CrispStrobe/filen-go/internal/models"
)

func (a *App) cmdLs(ctx context.Context, args []string) error {
	fs := a.newFlagSet("ls")
	long := fs.Bool("l", false, "long listing")
	trash := fs.Bool("trash", false, "list the trash instead of a path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	s, err := a.session()
	if err != nil {
		return err
	}

	parentUUID := ""
	if *trash {
		if fs.NArg() > 0 {
			return fmt.Errorf("-trash does not take a path")
		}
		parentUUID = drive.TrashParent
	} else {
		p := "/"
		if fs.NArg() > 0 {
			p = fs.Arg(0)
		}
		folder, err := s.drv.ResolveFolder(ctx, p)
		if err != nil {
			return err
		}
		parentUUID = folder.UUID
	}

	folders, files, err := s.drv.List(ctx, parentUUID)
	if err != nil {
		return err
	}
	sortListing(folders, files)

	if !*long {
		for _, f := range folders {
			fmt.Fprintln(a.out, f.Name+"/")
		}
		for _, f := range files {
			fmt.Fprintln(a.out, f.Name)
		}
		return nil
	}

	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	for _, f := range folders {
		fmt.Fprintf(w, "dir\t\t%s\t%s\t%s/\n", formatMillis(f.LastModified), f.UUID, f.Name)
	}
	for _, f := range files {
		fmt.Fprintf(w, "file\t%s\t%s\t%s\t%s\n",
			humanize.IBytes(uint64(f.Size)), formatMillis(f.LastModified), f.UUID, f.Name)
	}
	return w.Flush()
}

func (a *App) cmdStat(ctx context.Context, args []string) error {
	fs := a.newFlagSet("stat")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: stat <path>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	item, err := s.drv.Resolve(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 2, 4, 2, ' ', 0)
	fmt.Fprintf(w, "path\t%s\n", item.Path)
	fmt.Fprintf(w, "uuid\t%s\n", item.UUID)
	if item.Kind == models.KindFile {
		f := item.File
		fmt.Fprintf(w, "type\tfile\n")
		fmt.Fprintf(w, "size\t%d (%s)\n", f.Size, humanize.IBytes(uint64(f.Size)))
		fmt.Fprintf(w, "chunks\t%d\n", f.Chunks)
		fmt.Fprintf(w, "mime\t%s\n", f.MimeType)
		fmt.Fprintf(w, "modified\t%s\n", formatMillis(f.LastModified))
		if f.Hash != "" {
			fmt.Fprintf(w, "sha512\t%s\n", f.Hash)
		}
		fmt.Fprintf(w, "region\t%s\n", f.Region)
		fmt.Fprintf(w, "bucket\t%s\n", f.Bucket)
	} else {
		fmt.Fprintf(w, "type\tdir\n")
		if !item.IsRoot() && item.Folder != nil {
			fmt.Fprintf(w, "modified\t%s\n", formatMillis(item.Folder.LastModified))
		}
	}
	return w.Flush()
}

// sortListing orders a listing for display: folders before files, names
// case-insensitively, exact name as the tie-break.
func sortListing(folders []models.Folder, files []models.File) {
	byName := func(a, b string) bool {
		la, lb := strings.ToLower(a), strings.ToLower(b)
		if la != lb {
			return la < lb
		}
		return a < b
	}
	sort.Slice(folders, func(i, j int) bool { return byName(folders[i].Name, folders[j].Name) })
	sort.Slice(files, func(i, j int) bool { return byName(files[i].Name, files[j].Name) })
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
