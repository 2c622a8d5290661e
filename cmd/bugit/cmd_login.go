package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/satyaki-up/bugit/internal/launchpad"
)

func newLoginCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize bugit against Launchpad and cache the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			env := a.environment()
			if force {
				if err := store.Delete(ctx, a.cfg.Consumer, string(env.Name)); err != nil {
					return err
				}
			}
			creds, err := a.login(ctx, store)
			if err != nil {
				return err
			}

			client := launchpad.NewClient(env.APIRoot, creds.OAuth(), launchpad.WithLogger(a.logger.Named("launchpad")))
			me, err := client.Me(ctx)
			if err != nil {
				return err
			}

			if a.jsonOut {
				a.printJSON(map[string]any{
					"credentials": creds,
					"user":        me.Name,
				})
				return nil
			}
			fmt.Fprintf(a.stdout, "logged in to %s as %s\n", env.Name, me.Name)
			fmt.Fprintf(a.stdout, "consumer: %s\n", creds.Consumer)
			fmt.Fprintf(a.stdout, "token cached %s\n", humanize.Time(creds.CreatedAt))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "discard the cached token and authorize again")
	return cmd
}
