package commands

import (
	"fmt"
	"os"

	"refassist-backend/lib/serviceutil"
	"refassist-backend/services/linker"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(diffCmd)
}

var diffCmd = &cobra.Command{
	Use:   "diff <older run id> <newer run id>",
	Short: "Shows referee status changes between two stored runs.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		store := openStore(cfg)

		before, err := store.Pull(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to load older run", err)
		}
		after, err := store.Pull(cmd.Context(), args[1])
		if err != nil {
			serviceutil.Fatal("failed to load newer run", err)
		}

		diff := linker.DiffManuscripts(before.Manuscripts, after.Manuscripts)

		for _, id := range diff.AddedManuscripts {
			fmt.Printf("+ %s\n", id)
		}
		for _, id := range diff.RemovedManuscripts {
			fmt.Printf("- %s\n", id)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Manuscript", "Referee", "From", "To"})
		for _, c := range diff.StatusChanges {
			t.AppendRow(table.Row{c.Manuscript, c.Referee, c.From, c.To})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
