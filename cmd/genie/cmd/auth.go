package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
)

func newLoginCmd(opts *options) *cobra.Command {
	return authCmd(opts, "login", "Log in and store the session", (*threadclient.Client).Login)
}

func newRegisterCmd(opts *options) *cobra.Command {
	return authCmd(opts, "register", "Create an account and store the session", (*threadclient.Client).Register)
}

type authFunc func(c *threadclient.Client, ctx context.Context, email, password string) (threadclient.Session, error)

func authCmd(opts *options, use, short string, call authFunc) *cobra.Command {
	var email, password string
	c := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("GENIE_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or GENIE_PASSWORD) are required")
			}
			log := newLogger(opts)
			defer func() { _ = log.Sync() }()

			client := newClient(opts, log)
			s, err := call(client, cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := saveCredentials(opts.home(), credentialsFromSession(opts.server(), s)); err != nil {
				return fmt.Errorf("save credentials: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", s.User.Email)
			return nil
		},
	}
	c.Flags().StringVar(&email, "email", "", "account email")
	c.Flags().StringVar(&password, "password", "", "account password")
	return c
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := os.Remove(credentialsPath(opts.home()))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
