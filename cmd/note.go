package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// The note subcommands are a minimal local editing surface, enough to
// exercise the store without a full client.
func init() {
	var noteCommand = &cobra.Command{
		Use:   "note",
		Short: "Edit the local note collection",
	}

	var title string
	var addCommand = &cobra.Command{
		Use:   "add [body]",
		Short: "Create a local note",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := newApp()
			if err != nil {
				bootstrapLogger.Error("startup err", zap.Error(err))
				return
			}
			defer app.close()

			body := strings.Join(args, " ")
			n, err := app.noteService.Add(context.Background(), title, body, "cli")
			if err != nil {
				fmt.Fprintln(os.Stderr, "add failed:", err)
				return
			}
			fmt.Println(n.ID)
		},
	}
	addCommand.Flags().StringVarP(&title, "title", "t", "", "note title")

	var listCommand = &cobra.Command{
		Use:   "list",
		Short: "List local notes",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := newApp()
			if err != nil {
				bootstrapLogger.Error("startup err", zap.Error(err))
				return
			}
			defer app.close()

			notes, err := app.noteService.List(context.Background())
			if err != nil {
				fmt.Fprintln(os.Stderr, "list failed:", err)
				return
			}
			for _, n := range notes {
				fmt.Printf("%s  %s  %s\n", n.ID,
					time.Unix(n.ModifiedAt, 0).Format("2006-01-02 15:04"), n.Title)
			}
		},
	}

	var rmCommand = &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a local note",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			app, err := newApp()
			if err != nil {
				bootstrapLogger.Error("startup err", zap.Error(err))
				return
			}
			defer app.close()

			if err := app.noteService.Remove(context.Background(), args[0]); err != nil {
				fmt.Fprintln(os.Stderr, "rm failed:", err)
				return
			}
			fmt.Println("deleted; the remote copy goes away on the next sync")
		},
	}

	noteCommand.AddCommand(addCommand, listCommand, rmCommand)
	rootCmd.AddCommand(noteCommand)
}
