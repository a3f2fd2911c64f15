package cli

import (
	"context"
	"fmt"

	"github.com/CrispStrobe/filen-go/internal/drive"
)

func (a *App) cmdMkdir(ctx context.Context, args []string) error {
	fs := a.newFlagSet("mkdir")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: mkdir <path>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	if _, err := s.drv.MkdirAll(ctx, fs.Arg(0), drive.MkdirOpts{}); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "created %s\n", fs.Arg(0))
	return nil
}

func (a *App) cmdMv(ctx context.Context, args []string) error {
	fs := a.newFlagSet("mv")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: mv <source> <dest-folder>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	if err := s.drv.Move(ctx, fs.Arg(0), fs.Arg(1)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "moved %s to %s\n", fs.Arg(0), fs.Arg(1))
	return nil
}

func (a *App) cmdRename(ctx context.Context, args []string) error {
	fs := a.newFlagSet("rename")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: rename <path> <new-name>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	if err := s.drv.Rename(ctx, fs.Arg(0), fs.Arg(1)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "renamed %s to %s\n", fs.Arg(0), fs.Arg(1))
	return nil
}

func (a *App) cmdTrash(ctx context.Context, args []string) error {
	fs := a.newFlagSet("trash")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: trash <path>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	if err := s.drv.Trash(ctx, fs.Arg(0)); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "trashed %s\n", fs.Arg(0))
	return nil
}

func (a *App) cmdRestore(ctx context.Context, args []string) error {
	fs := a.newFlagSet("restore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: restore <name>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	item, err := s.drv.ResolveTrash(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if err := s.drv.Restore(ctx, item); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "restored %s\n", item.Name)
	return nil
}

func (a *App) cmdDelete(ctx context.Context, args []string) error {
	fs := a.newFlagSet("delete")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: delete [-yes] <name>")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	item, err := s.drv.ResolveTrash(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	if !*yes {
		ok, err := promptYesNo(a.reader,
			fmt.Sprintf("permanently delete %s? This cannot be undone.", item.Name), a.out)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, "aborted")
			return nil
		}
	}

	if err := s.drv.DeletePermanent(ctx, item); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "deleted %s\n", item.Name)
	return nil
}
