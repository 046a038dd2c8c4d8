package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/direqt/direqt-go/internal/accounts"
	"github.com/direqt/direqt-go/internal/platform/config"
)

func runInit(_ context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("init", flag.ContinueOnError)
	force := flags.Bool("force", false, "overwrite an existing direqt.json")
	withSecrets := flags.Bool("with-secrets", false, "also write the API key secret")
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	path := a.projectPath()
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", ProjectFile)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if *force {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	values := map[string]string{KeyAPIRoot: a.get(KeyAPIRoot)}
	if id := a.get(KeyAPIKeyID); id != "" {
		values[KeyAPIKeyID] = id
	}
	if *withSecrets {
		if secret := a.get(KeyAPIKeySecret); secret != "" {
			values[KeyAPIKeySecret] = secret
		}
	}

	if err := config.SaveFile(path, values); err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "Wrote %s\n", path)
	return nil
}

func runRegister(ctx context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("register", flag.ContinueOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	name := flags.String("name", "", "display name")
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	acct, err := a.accountsClient().Register(ctx, accounts.RegisterRequest{
		Email:    *email,
		Password: *password,
		Name:     *name,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Stdout, "Registered account %s (%s)\n", acct.ID, acct.Email)
	fmt.Fprintln(a.Stdout, "Next: direqt signin -email <email> -password <password>")
	return nil
}

func runSignIn(ctx context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("signin", flag.ContinueOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	sess, err := a.accountsClient().SignIn(ctx, *email, *password)
	if err != nil {
		return err
	}
	if err := config.SaveFile(a.globalPath(), map[string]string{KeyAPIToken: sess.Token}); err != nil {
		return fmt.Errorf("storing api token: %w", err)
	}

	fmt.Fprintf(a.Stdout, "Signed in. API token stored in %s\n", a.globalPath())
	if info, err := accounts.InspectToken(sess.Token); err == nil {
		a.printTokenInfo(info)
	}
	return nil
}

func runGenerateAPIKey(ctx context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("generate-api-key", flag.ContinueOnError)
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	key, err := a.accountsClient().GenerateAPIKey(ctx)
	if err != nil {
		return err
	}
	if err := config.SaveFile(a.globalPath(), map[string]string{
		KeyAPIKeyID:     key.ID,
		KeyAPIKeySecret: key.Secret,
	}); err != nil {
		return fmt.Errorf("storing api key: %w", err)
	}

	fmt.Fprintf(a.Stdout, "APIKEY_ID:     %s\n", key.ID)
	fmt.Fprintf(a.Stdout, "APIKEY_SECRET: %s\n", key.Secret)
	fmt.Fprintf(a.Stdout, "Stored in %s. The secret will not be shown again.\n", a.globalPath())
	return nil
}

func runAccountInfo(ctx context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("get-account-info", flag.ContinueOnError)
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	acct, err := a.accountsClient().AccountInfo(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(acct)
}

func runCurrentKey(_ context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("current-key", flag.ContinueOnError)
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	a.printKeyStatus(a.Stdout)

	token, src, ok := a.sources.Resolve(KeyAPIToken)
	if !ok {
		fmt.Fprintln(a.Stdout, "API_TOKEN:     <not set>")
		return nil
	}
	fmt.Fprintf(a.Stdout, "API_TOKEN:     [redacted] (%s)\n", src)
	info, err := accounts.InspectToken(token)
	if err != nil {
		fmt.Fprintln(a.Stdout, "               token is not a readable JWT")
		return nil
	}
	a.printTokenInfo(info)
	return nil
}

func runPublisherID(ctx context.Context, a *App, args []string) error {
	flags := flag.NewFlagSet("get-publisher-id", flag.ContinueOnError)
	if err := a.parseFlags(flags, args); err != nil {
		return err
	}

	id, err := a.accountsClient().PublisherID(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Stdout, id)
	return nil
}

func (a *App) printTokenInfo(info *accounts.TokenInfo) {
	who := info.Subject
	if info.Email != "" {
		who = info.Email
	}
	if who != "" {
		fmt.Fprintf(a.Stdout, "Account:       %s\n", who)
	}
	switch {
	case info.ExpiresAt.IsZero():
		fmt.Fprintln(a.Stdout, "Expires:       never")
	case info.Expired(a.now()):
		fmt.Fprintf(a.Stdout, "Expires:       %s (expired)\n", info.ExpiresAt.Format(time.RFC3339))
	default:
		fmt.Fprintf(a.Stdout, "Expires:       %s\n", info.ExpiresAt.Format(time.RFC3339))
	}
}
