// Package main implements notectl, a command-line client for the notewise API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuitang/notewise/internal/client"
	"github.com/kuitang/notewise/internal/errs"
)

var version = "dev"

const (
	defaultServer = "http://localhost:8080"
	tokenEnv      = "NOTECTL_TOKEN"
	serverEnv     = "NOTECTL_SERVER"
	passwordEnv   = "NOTECTL_PASSWORD"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// options are the persistent flags shared by every command.
type options struct {
	server string
	token  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "notectl",
		Short: "Command-line client for the notewise notes API",
		Long: `notectl talks to a notewise server.

Sign in once and export the printed token:

  notectl login ada@example.com --password '...'
  export NOTECTL_TOKEN=...

Every other command loads your notes, acts, and prints the result.`,
		Version:      version,
		SilenceUsage: true,
	}

	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}
	root.PersistentFlags().StringVar(&opts.server, "server", server, "notewise server URL (env "+serverEnv+")")
	root.PersistentFlags().StringVar(&opts.token, "token", os.Getenv(tokenEnv), "access token (env "+tokenEnv+")")

	root.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newWhoamiCmd(opts),
		newListCmd(opts),
		newSearchCmd(opts),
		newShowCmd(opts),
		newAddCmd(opts),
		newEditCmd(opts),
		newPinCmd(opts),
		newArchiveCmd(opts),
		newRemoveCmd(opts),
		newTagsCmd(opts),
	)
	return root
}

// apiClient returns a client for the configured server. Commands that act on
// notes require a token.
func (o *options) apiClient(requireToken bool) (*client.Client, error) {
	if requireToken && o.token == "" {
		return nil, errors.New("not signed in: run 'notectl login' and set " + tokenEnv + " or pass --token")
	}
	return client.New(o.server, client.WithToken(o.token)), nil
}

// loadCache signs in with the configured token and loads every note.
func (o *options) loadCache(ctx context.Context) (*client.Cache, error) {
	c, err := o.apiClient(true)
	if err != nil {
		return nil, err
	}
	cache := client.NewCache(c)
	if err := cache.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load notes: %w", tokenHint(err))
	}
	return cache, nil
}

// tokenHint points at login when the server rejected the token.
func tokenHint(err error) error {
	if errs.Is(err, errs.Unauthenticated) {
		return fmt.Errorf("%w (token rejected: run 'notectl login' for a new one)", err)
	}
	return err
}
