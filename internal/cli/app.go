// Package cli is the user-facing surface of the client: command dispatch,
// flag parsing, prompts and output formatting. Everything below it goes
// through the drive, transfer and batch packages; no other package prints.
package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/config"
	"github.com/CrispStrobe/filen-go/internal/logging"
)

// App holds everything a command needs: configuration, wired I/O and the
// client factory. Commands are methods on App so tests can point the I/O
// at buffers and the factory at a fake.
type App struct {
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
	reader *bufio.Reader
	log    logging.Logger

	// newAPIClient builds the gateway client; replaced in tests.
	newAPIClient func(opts api.Options) api.Client
}

func NewApp(cfg *config.Config, log logging.Logger) *App {
	if log == nil {
		log = logging.NewDiscardLogger()
	}
	return &App{
		cfg:    cfg,
		out:    os.Stdout,
		errOut: os.Stderr,
		reader: bufio.NewReader(os.Stdin),
		log:    log,
		newAPIClient: func(opts api.Options) api.Client {
			return api.New(opts)
		},
	}
}

// Run dispatches one command and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.usage()
		return 1
	}
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "login":
		err = a.cmdLogin(ctx, rest)
	case "logout":
		err = a.cmdLogout(rest)
	case "whoami":
		err = a.cmdWhoami(rest)
	case "ls":
		err = a.cmdLs(ctx, rest)
	case "stat":
		err = a.cmdStat(ctx, rest)
	case "mkdir":
		err = a.cmdMkdir(ctx, rest)
	case "up":
		err = a.cmdUp(ctx, rest)
	case "down":
		err = a.cmdDown(ctx, rest)
	case "mv":
		err = a.cmdMv(ctx, rest)
	case "rename":
		err = a.cmdRename(ctx, rest)
	case "cp":
		err = a.cmdCp(ctx, rest)
	case "trash":
		err = a.cmdTrash(ctx, rest)
	case "restore":
		err = a.cmdRestore(ctx, rest)
	case "delete":
		err = a.cmdDelete(ctx, rest)
	case "search":
		err = a.cmdSearch(ctx, rest)
	case "find":
		err = a.cmdFind(ctx, rest)
	case "tree":
		err = a.cmdTree(ctx, rest)
	case "verify":
		err = a.cmdVerify(ctx, rest)
	case "help", "-h", "--help":
		a.usage()
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n", cmd)
		a.usage()
		return 1
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(a.errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) usage() {
	fmt.Fprint(a.errOut, `Usage: filen [global flags] <command> [args]

Session:
  login                         authenticate and store the session
  logout                        forget the stored session
  whoami                        show the logged-in account

Browsing:
  ls [-l] [-trash] [path]       list a remote folder (or the trash)
  stat <path>                   show details of one remote item
  tree [path] [-depth n]        draw a remote folder tree
  search <name> [-maxdepth n]   find items by exact name
  find <start> <pattern> [-maxdepth n]
                                find files by glob pattern

Transfer:
  up [flags] <source...> <remote-dir>
                                upload files (folders with -r)
  down [flags] <remote...> [-t local-dir]
                                download files or folders
  cp <remote-file> <remote-dir>
                                copy a remote file
  verify <remote-file> <local-file>
                                check a download against the stored hash

Organize:
  mkdir <path>                  create remote folders, parents included
  mv <source> <dest-folder>     move an item
  rename <path> <new-name>      rename an item in place
  trash <path>                  move an item to the trash
  restore <name>                restore a trashed item by name
  delete <name>                 permanently delete a trashed item

Transfer flags:
  -on-conflict skip|overwrite|newer|interactive   (short: -p)
  -include glob   -exclude glob   (repeatable)
  -force          overwrite and never prompt
  -r              recurse into directory sources (up only)

Global flags: -c <config.json>, -gateway <url>, -datadir <dir>, -version
`)
}

// newFlagSet builds a subcommand flag set whose -h output lands on the
// app's error writer instead of the process default.
func (a *App) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}
