package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	var account string

	var syncCommand = &cobra.Command{
		Use:   "sync [-a account]",
		Short: "Run one sync pass now",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := newApp()
			if err != nil {
				bootstrapLogger.Error("startup err", zap.Error(err))
				return
			}
			defer app.close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			accounts := []string{account}
			if account == "" {
				creds, err := app.creds.List(ctx)
				if err != nil {
					fmt.Fprintln(os.Stderr, "listing accounts failed:", err)
					return
				}
				if len(creds) == 0 {
					fmt.Fprintln(os.Stderr, "no connected accounts; run `noted-sync connect` first")
					return
				}
				accounts = accounts[:0]
				for _, c := range creds {
					accounts = append(accounts, c.Account)
				}
			}

			for _, acct := range accounts {
				result, err := app.syncService.Run(ctx, acct)
				if err != nil {
					fmt.Fprintf(os.Stderr, "sync of %q failed: %v\n", acct, err)
					continue
				}
				fmt.Printf("%s: pushed %d, pulled %d, deleted %d, unchanged %d, failed %d\n",
					acct, result.Pushed, result.Pulled, result.Deleted, result.Unchanged, result.Failed)
				for _, f := range result.Failures {
					id := f.LocalID
					if id == "" {
						id = f.RemoteID
					}
					fmt.Printf("  failed %s: %s\n", id, f.Reason)
				}
			}
		},
	}
	syncCommand.Flags().StringVarP(&account, "account", "a", "", "sync only this account")
	rootCmd.AddCommand(syncCommand)
}
