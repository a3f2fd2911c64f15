package cli

import (
	"errors"
	"fmt"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/batch"
	"github.com/CrispStrobe/filen-go/internal/common"
	"github.com/CrispStrobe/filen-go/internal/creds"
	"github.com/CrispStrobe/filen-go/internal/drive"
	"github.com/CrispStrobe/filen-go/internal/models"
	"github.com/CrispStrobe/filen-go/internal/transfer"
)

// session is the wired service stack of one authenticated command.
type session struct {
	id  *models.Identity
	api api.Client
	drv drive.Drive
	eng transfer.Engine
	ctl batch.Controller
}

func (a *App) credStore() *creds.Store {
	return creds.NewStore(a.cfg.CredentialsPath())
}

func (a *App) apiOptions() api.Options {
	return api.Options{
		GatewayURL:   a.cfg.GatewayURL,
		IngestURL:    a.cfg.IngestURL,
		EgestURL:     a.cfg.EgestURL,
		MaxRetries:   uint64(a.cfg.MaxRetries),
		ChunkTimeout: a.cfg.ChunkUploadTimeout,
	}
}

// session loads the stored identity and builds the full stack on top of
// it. Commands that talk to the drive all start here.
func (a *App) session() (*session, error) {
	id, err := a.credStore().Load()
	if err != nil {
		if errors.Is(err, common.ErrAuthMissing) {
			return nil, fmt.Errorf("not logged in, run `filen login` first")
		}
		return nil, err
	}

	opts := a.apiOptions()
	opts.APIKey = id.APIKey
	client := a.newAPIClient(opts)

	drv, err := drive.New(client, id, drive.NewListingCache(a.cfg.CacheTTL), a.log)
	if err != nil {
		return nil, err
	}
	eng := transfer.New(client, drv, a.log)
	ctl := batch.New(client, drv, eng, batch.NewStateStore(a.cfg.BatchStateDir()), a.log)

	return &session{id: id, api: client, drv: drv, eng: eng, ctl: ctl}, nil
}

func (a *App) cmdLogout(args []string) error {
	fs := a.newFlagSet("logout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.credStore().Delete(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "logged out")
	return nil
}

func (a *App) cmdWhoami(args []string) error {
	fs := a.newFlagSet("whoami")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := a.credStore().Load()
	if err != nil {
		if errors.Is(err, common.ErrAuthMissing) {
			return fmt.Errorf("not logged in")
		}
		return err
	}
	fmt.Fprintln(a.out, id.Email)
	return nil
}
