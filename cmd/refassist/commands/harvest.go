package commands

import (
	"errors"
	"log/slog"
	"os"
	"time"

	"refassist-backend/lib/restyutil"
	"refassist-backend/lib/scrapers/editflow"
	"refassist-backend/lib/scrapers/scholarone"
	"refassist-backend/lib/scrapers/siamcgi"
	"refassist-backend/lib/serviceutil"
	"refassist-backend/services/harvest"
	"refassist-backend/services/keychain"
	"refassist-backend/services/mailbox"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var harvestNoMailbox *bool

func init() {
	harvestNoMailbox = harvestCmd.Flags().Bool("no-mailbox", false, "Skip mailbox-based 2FA and email enrichment.")
	rootCmd.AddCommand(harvestCmd)
}

var harvestCmd = &cobra.Command{
	Use:   "harvest <journal code>",
	Short: "Scrapes one journal's portal and stores a snapshot.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()

		scholarone.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/scholarone"))
		siamcgi.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/siamcgi"))
		editflow.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/editflow"))
		mailbox.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/mailbox"))
		keychain.SetRestyInstrumentOutput(restyutil.NewFilesystemOutput(".dev/resty/keychain"))

		kc := openKeychain(cmd.Context(), cfg)
		store := openStore(cfg)

		deps := harvest.Deps{Keychain: kc}
		if !*harvestNoMailbox {
			deps.Mailbox = openMailbox(kc)
		}

		service := harvest.NewService(harvest.DefaultRegistry(), store, deps, cfg.Harvest)

		t1 := time.Now()
		res, err := service.Harvest(cmd.Context(), args[0])
		if err != nil {
			if errors.Is(err, scholarone.VerificationRequired) {
				serviceutil.Fatal("login needs a verification code, configure the mailbox or complete the login manually", err)
			}
			serviceutil.Fatal("harvest failed", err)
		}
		slog.Info("harvest finished", "run_id", res.RunId, "seconds", time.Since(t1).Seconds())

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Manuscript", "Title", "Referees", "Documents"})
		for _, m := range res.Manuscripts {
			t.AppendRow(table.Row{m.ID, m.Title, len(m.Referees), len(m.Documents)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
