package config

import (
	"flag"
	"os"

	"github.com/CrispStrobe/filen-go/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-gateway string   gateway API base url
//	-datadir string   directory for credentials and batch state
//
// Arguments are filtered through flagx.FilterArgs so subcommand flags do not
// interfere with config loading.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-gateway", "-datadir"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.GatewayURL, "gateway", cfg.GatewayURL, "gateway API base url")
	fs.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "directory for credentials and batch state")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
