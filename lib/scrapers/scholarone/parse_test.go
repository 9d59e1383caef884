package scholarone

import (
	"bytes"
	"context"
	"testing"

	"refassist-backend/lib/editorial"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const listingPage = `
<html><body>
<table class="listing">
  <tr>
    <th>Manuscript ID</th><th>Title</th><th>Authors</th><th>Status</th>
    <th>Submitted</th><th>Referees</th><th>Referee Status</th><th>Referee Dates</th>
  </tr>
  <tr>
    <td>MF-2025-0123</td>
    <td>Pricing under Ambiguity</td>
    <td>Doe, Jane<br>Roe, Richard</td>
    <td>Under Review</td>
    <td>04-Feb-2025</td>
    <td><a href="bio.html?id=77">Ferrari, Marco</a><br>Smith, John<br>Okafor, Ada</td>
    <td>AcceptedDeclinedInvited</td>
    <td>10-Feb-2025 10-Mar-2025<br>11-Feb-2025<br>12-Feb-2025</td>
  </tr>
  <tr>
    <td>MOR-2024-1410.R1</td>
    <td>A Revision</td>
    <td>Doe, Jane</td>
    <td>Awaiting Reports</td>
    <td>2024-11-30</td>
    <td>Curie</td>
    <td>Report Submitted</td>
    <td>2024-12-01</td>
  </tr>
  <tr>
    <td>not-an-id</td><td>skip me</td><td></td><td></td><td></td><td></td><td></td><td></td>
  </tr>
</table>
</body></html>`

func TestParseManuscriptList(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(listingPage))
	require.NoError(t, err)

	manuscripts, bioLinks := ParseManuscriptList(context.Background(), doc)
	require.Len(t, manuscripts, 2)
	require.Equal(t, "bio.html?id=77", bioLinks["Ferrari, Marco"])

	first := manuscripts[0]
	require.Equal(t, "MF-2025-0123", first.ID)
	require.Equal(t, "Pricing under Ambiguity", first.Title)
	require.Equal(t, []string{"Doe, Jane", "Roe, Richard"}, first.Authors)
	require.Equal(t, "Under Review", first.Status)
	require.Equal(t, "04-Feb-2025", first.SubmissionDate)

	require.Len(t, first.Referees, 3)
	require.Equal(t, "Ferrari, Marco", first.Referees[0].Name)
	require.Equal(t, editorial.StatusAccepted, first.Referees[0].Status)
	require.Equal(t, "10-Feb-2025", first.Referees[0].InvitedDate)
	require.Equal(t, "10-Mar-2025", first.Referees[0].DueDate)
	require.Equal(t, editorial.StatusDeclined, first.Referees[1].Status)
	require.Equal(t, editorial.StatusInvited, first.Referees[2].Status)

	second := manuscripts[1]
	require.Equal(t, "MOR-2024-1410.R1", second.ID)
	require.Len(t, second.Referees, 1)
	require.Equal(t, editorial.StatusReportSubmitted, second.Referees[0].Status)
	require.Equal(t, "Report Submitted", second.Referees[0].RawStatus)
}

func TestSplitStatusRun(t *testing.T) {
	require.Equal(t,
		[]string{"Accepted", "Accepted", "Declined"},
		SplitStatusRun("AcceptedAcceptedDeclined"),
	)
	require.Equal(t,
		[]string{"Report Submitted", "Invited"},
		SplitStatusRun("Report SubmittedInvited"),
	)
	require.Nil(t, SplitStatusRun("nothing recognizable"))
}
