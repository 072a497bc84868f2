package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func init() {
	var disconnectCommand = &cobra.Command{
		Use:   "disconnect <account>",
		Short: "Remove an account's credential and sync state",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			app, err := newApp()
			if err != nil {
				bootstrapLogger.Error("startup err", zap.Error(err))
				return
			}
			defer app.close()

			if err := app.authService.Disconnect(context.Background(), args[0]); err != nil {
				fmt.Fprintln(os.Stderr, "disconnect failed:", err)
				return
			}
			fmt.Printf("Disconnected %q. Local notes are untouched.\n", args[0])
		},
	}
	rootCmd.AddCommand(disconnectCommand)
}
