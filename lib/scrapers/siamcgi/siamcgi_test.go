package siamcgi

import (
	"bytes"
	"context"
	"testing"

	"refassist-backend/lib/editorial"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	testCases := []struct {
		in  string
		out string
	}{
		{in: "2025-07-10", out: "2025-07-10"},
		{in: "07/10/2025", out: "2025-07-10"},
		{in: "10-Feb-2025", out: "2025-02-10"},
		{in: "Feb 4, 2025", out: "2025-02-04"},
		{in: "not a date", out: ""},
		{in: "", out: ""},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.out, ParseDate(tc.in), "input %q", tc.in)
	}
}

const folderPage = `
<html><body>
<table>
  <tr><th>MS #</th><th>Title</th><th>Authors</th><th>Status</th><th>Submitted</th></tr>
  <tr>
    <td>M172838</td>
    <td>Control of Uncertain Systems</td>
    <td>Doe, Jane<br>Okafor, Ada</td>
    <td>Under Review</td>
    <td>07/10/2025</td>
  </tr>
  <tr>
    <td>header junk</td><td></td><td></td><td></td><td></td>
  </tr>
</table>
</body></html>`

const detailPage = `
<html><body>
<table>
  <tr><th>Referee</th><th>Email</th><th>Status</th><th>Invited</th><th>Due</th><th>Responded</th></tr>
  <tr>
    <td>Ferrari, Marco</td>
    <td>marco.ferrari@univ.it</td>
    <td>Agreed</td>
    <td>2025-07-12</td>
    <td>2025-08-12</td>
    <td>2025-07-13</td>
  </tr>
  <tr>
    <td>Smith, John</td>
    <td></td>
    <td>Declined</td>
    <td>2025-07-12</td>
    <td></td>
    <td>2025-07-14</td>
  </tr>
</table>
<table>
  <tr><th>File</th><th>Type</th></tr>
  <tr><td><a href="/cgi-bin/main.plex?form_type=download&file_id=9">report1.pdf</a></td><td>Referee Report</td></tr>
  <tr><td><a href="/cgi-bin/main.plex?form_type=download&file_id=3">ms.pdf</a></td><td>Manuscript File</td></tr>
</table>
</body></html>`

func TestParseFolderListing(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(folderPage))
	require.NoError(t, err)

	manuscripts := ParseFolderListing(context.Background(), doc)
	require.Len(t, manuscripts, 1)
	require.Equal(t, "M172838", manuscripts[0].ID)
	require.Equal(t, "Control of Uncertain Systems", manuscripts[0].Title)
	require.Equal(t, []string{"Doe, Jane", "Okafor, Ada"}, manuscripts[0].Authors)
	require.Equal(t, "2025-07-10", manuscripts[0].SubmissionDate)
}

func TestParseManuscriptDetails(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(detailPage))
	require.NoError(t, err)

	m := editorial.Manuscript{ID: "M172838"}
	ParseManuscriptDetails(context.Background(), doc, &m)

	require.Len(t, m.Referees, 2)
	require.Equal(t, "Ferrari, Marco", m.Referees[0].Name)
	require.Equal(t, "marco.ferrari@univ.it", m.Referees[0].Email)
	require.Equal(t, editorial.StatusAccepted, m.Referees[0].Status)
	require.Equal(t, "Agreed", m.Referees[0].RawStatus)
	require.Equal(t, "2025-07-12", m.Referees[0].InvitedDate)
	require.Equal(t, "2025-08-12", m.Referees[0].DueDate)
	require.Equal(t, editorial.StatusDeclined, m.Referees[1].Status)

	require.Len(t, m.Documents, 2)
	require.Equal(t, "report1.pdf", m.Documents[0].Name)
	require.Equal(t, editorial.DocRefereeReport, m.Documents[0].Kind)
	require.Contains(t, m.Documents[0].URL, "file_id=9")
	require.Equal(t, editorial.DocManuscript, m.Documents[1].Kind)
}
