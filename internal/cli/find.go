package cli

import (
	"context"
	"fmt"

	"github.com/CrispStrobe/filen-go/internal/drive"
)

// cmdSearch looks for files whose name contains the query anywhere under
// the root. The service has no server-side search, so this is a full
// traversal.
func (a *App) cmdSearch(ctx context.Context, args []string) error {
	fs := a.newFlagSet("search")
	maxDepth := fs.Int("maxdepth", -1, "descend at most this many levels (-1: unbounded)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: search <name> [-maxdepth n]")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	return a.printMatches(ctx, s, "/", "*"+fs.Arg(0)+"*", *maxDepth)
}

func (a *App) cmdFind(ctx context.Context, args []string) error {
	fs := a.newFlagSet("find")
	maxDepth := fs.Int("maxdepth", -1, "descend at most this many levels (-1: unbounded)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("usage: find <start> <pattern> [-maxdepth n]")
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	return a.printMatches(ctx, s, fs.Arg(0), fs.Arg(1), *maxDepth)
}

func (a *App) printMatches(ctx context.Context, s *session, start, pattern string, maxDepth int) error {
	found := false
	err := s.drv.Find(ctx, start, pattern, maxDepth, func(m drive.Match) error {
		found = true
		fmt.Fprintln(a.out, m.Path)
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintln(a.errOut, "no matches")
	}
	return nil
}

func (a *App) cmdTree(ctx context.Context, args []string) error {
	fs := a.newFlagSet("tree")
	depth := fs.Int("depth", -1, "descend at most this many levels (-1: unbounded)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p := "/"
	if fs.NArg() > 0 {
		p = fs.Arg(0)
	}

	s, err := a.session()
	if err != nil {
		return err
	}
	return s.drv.Tree(ctx, a.out, p, *depth)
}
