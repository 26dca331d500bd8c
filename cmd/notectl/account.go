package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kuitang/notewise/internal/client"
)

func passwordFlag(cmd *cobra.Command, password *string) {
	cmd.Flags().StringVar(password, "password", "", "account password (env "+passwordEnv+")")
}

func resolvePassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}
	return "", errors.New("password required: pass --password or set " + passwordEnv)
}

func newRegisterCmd(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "register <name> <email>",
		Short: "Create an account and print its access token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			c, _ := opts.apiClient(false)
			session, err := c.Register(cmd.Context(), args[0], args[1], pw)
			if err != nil {
				return err
			}
			printSession(cmd, "Registered", session)
			return nil
		},
	}
	passwordFlag(cmd, &password)
	return cmd
}

func newLoginCmd(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email>",
		Short: "Sign in and print an access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := resolvePassword(password)
			if err != nil {
				return err
			}
			c, _ := opts.apiClient(false)
			session, err := c.Login(cmd.Context(), args[0], pw)
			if err != nil {
				return err
			}
			printSession(cmd, "Signed in as", session)
			return nil
		},
	}
	passwordFlag(cmd, &password)
	return cmd
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.apiClient(true)
			if err != nil {
				return err
			}
			me, err := c.Me(cmd.Context())
			if err != nil {
				return tokenHint(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", me.Name, me.Email, me.ID)
			return nil
		},
	}
}

func printSession(cmd *cobra.Command, verb string, s *client.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s <%s>\n", verb, s.User.Name, s.User.Email)
	fmt.Fprintf(out, "export %s=%s\n", tokenEnv, s.Token)
}
