package commands

import (
	"fmt"
	"os"
	"time"

	"refassist-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(exportCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs <journal code>",
	Short: "Lists stored harvest runs for a journal, most recent first.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		store := openStore(cfg)

		runs, err := store.ListRuns(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to list runs", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Journal", "Time"})
		for _, r := range runs {
			t.AppendRow(table.Row{r.ID, r.Journal, r.Time.Format(time.RFC3339)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <run id>",
	Short: "Prints one stored run as JSON.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		store := openStore(cfg)

		out, err := store.ExportJson(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to export run", err)
		}
		fmt.Println(string(out))
	},
}
