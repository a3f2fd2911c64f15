package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/common"
	"github.com/CrispStrobe/filen-go/internal/cryptox"
	"github.com/CrispStrobe/filen-go/internal/models"
)

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	fs := a.newFlagSet("login")
	email := fs.String("email", "", "account email (prompted when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		e, err := promptLine(a.reader, "Email", a.out)
		if err != nil {
			return err
		}
		*email = e
	}
	if *email == "" {
		return fmt.Errorf("an email is required")
	}

	password, err := promptPassword("Password", a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	client := a.newAPIClient(a.apiOptions())
	info, err := client.AuthInfo(ctx, *email)
	if err != nil {
		return err
	}

	masterKey, loginPassword, err := cryptox.DeriveMasterKeys(string(password), info.Salt, info.AuthVersion)
	if err != nil {
		return err
	}

	resp, err := a.loginWith2FA(ctx, client, *email, loginPassword, info.AuthVersion)
	if err != nil {
		return err
	}
	client.SetAPIKey(resp.APIKey)

	keys, err := decodeMasterKeys(resp.MasterKeys, masterKey)
	if err != nil {
		return err
	}

	base := resp.BaseFolderUUID
	if base == "" {
		base, err = client.BaseFolder(ctx)
		if err != nil {
			return fmt.Errorf("fetch base folder: %w", err)
		}
	}

	id := &models.Identity{
		Email:          strings.ToLower(*email),
		APIKey:         resp.APIKey,
		MasterKeys:     keys,
		BaseFolderUUID: base,
		UserID:         resp.ID,
	}
	if err := a.credStore().Save(id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "logged in as %s\n", id.Email)
	return nil
}

// loginWith2FA performs the login call, prompting for a two-factor code as
// long as the gateway keeps asking for one.
func (a *App) loginWith2FA(ctx context.Context, client api.Client, email, loginPassword string, authVersion int) (*api.LoginResponse, error) {
	code := ""
	for {
		resp, err := client.Login(ctx, email, loginPassword, code, authVersion)
		if err == nil {
			return resp, nil
		}
		switch {
		case errors.Is(err, api.Err2FAWrong):
			fmt.Fprintln(a.errOut, "two-factor code rejected")
		case errors.Is(err, api.Err2FARequired):
		default:
			return nil, err
		}
		code, err = promptLine(a.reader, "Two-factor code", a.out)
		if err != nil {
			return nil, err
		}
		if code == "" {
			return nil, fmt.Errorf("login aborted")
		}
	}
}

// decodeMasterKeys turns the login response's masterKeys field into the
// plaintext key ring, oldest first. The field is either a plain "k1|k2|…"
// string, a single envelope over that string, or a list of per-key
// envelopes; envelopes open under the password-derived master key.
func decodeMasterKeys(raw json.RawMessage, masterKey string) ([]string, error) {
	collect := func(joined string) []string {
		var keys []string
		for _, k := range strings.Split(joined, "|") {
			if k != "" {
				keys = append(keys, k)
			}
		}
		return keys
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.HasPrefix(s, "002") {
			plain, err := cryptox.DecryptMetadata(s, masterKey)
			if err != nil {
				return nil, fmt.Errorf("decrypt master keys: %w", err)
			}
			s = plain
		}
		if keys := collect(s); len(keys) > 0 {
			return keys, nil
		}
		return []string{masterKey}, nil
	}

	var envelopes []string
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, fmt.Errorf("unexpected masterKeys shape: %w", err)
	}
	var keys []string
	for _, env := range envelopes {
		plain, err := cryptox.DecryptMetadata(env, masterKey)
		if err != nil {
			return nil, fmt.Errorf("decrypt master keys: %w", err)
		}
		keys = append(keys, collect(plain)...)
	}
	if len(keys) == 0 {
		return []string{masterKey}, nil
	}
	return keys, nil
}
