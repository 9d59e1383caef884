package commands

import (
	"fmt"
	"os"

	"refassist-backend/lib/serviceutil"
	"refassist-backend/services/correlator"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	correlateReferee    *string
	correlateManuscript *string
	correlateJournal    *string
	correlateMax        *int
)

func init() {
	correlateReferee = correlateCmd.Flags().String("referee", "", "Referee name, e.g. 'Ferrari, Marco'.")
	correlateManuscript = correlateCmd.Flags().String("manuscript", "", "Manuscript id, e.g. M172838.")
	correlateJournal = correlateCmd.Flags().String("journal", "", "Journal code used in partial-id matching.")
	correlateMax = correlateCmd.Flags().Int("max", 25, "Maximum number of mailbox messages to consider.")
	correlateCmd.MarkFlagRequired("referee")
	correlateCmd.MarkFlagRequired("manuscript")
	rootCmd.AddCommand(correlateCmd)
}

var correlateCmd = &cobra.Command{
	Use:   "correlate --referee <name> --manuscript <id> [--journal <code>]",
	Short: "Searches the mailbox for a referee's acceptance and invitation emails.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := readConfig()
		kc := openKeychain(cmd.Context(), cfg)
		mb := openMailbox(kc)

		emails, err := mb.SearchReplies(cmd.Context(), *correlateJournal, *correlateManuscript, *correlateMax)
		if err != nil {
			serviceutil.Fatal("mailbox search failed", err)
		}

		acceptance, contact := correlator.MatchEmails(correlator.Request{
			RefereeName:  *correlateReferee,
			ManuscriptID: *correlateManuscript,
			JournalCode:  *correlateJournal,
			Emails:       emails,
		})

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Kind", "Address", "Score", "Subject", "Date"})
		if acceptance != nil {
			t.AppendRow(table.Row{"acceptance", acceptance.Address, acceptance.Score, acceptance.Email.Subject, acceptance.Email.Date})
		}
		if contact != nil {
			t.AppendRow(table.Row{"contact", contact.Address, contact.Score, contact.Email.Subject, contact.Email.Date})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()

		if acceptance == nil && contact == nil {
			fmt.Printf("no message cleared the relevance floor among %d candidates\n", len(emails))
		}
	},
}
