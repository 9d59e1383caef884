package editflow

import (
	"bytes"
	"context"
	"testing"

	"refassist-backend/lib/editorial"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const submissionsPage = `
<html><body>
<table>
  <tr><th>ID</th><th>Title</th><th>Authors</th><th>Status</th><th>Received</th><th>Referees</th></tr>
  <tr>
    <td>2025-03-041</td>
    <td>Moduli of Surfaces</td>
    <td>Doe, Jane</td>
    <td>refereeing</td>
    <td>2025-03-14</td>
    <td>Ferrari, Marco (accepted 2025-07-12)<br>Smith, John (declined 2025-07-14)<br>Okafor, Ada</td>
  </tr>
</table>
</body></html>`

func TestParseSubmissionList(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(submissionsPage))
	require.NoError(t, err)

	manuscripts := ParseSubmissionList(context.Background(), doc)
	require.Len(t, manuscripts, 1)

	m := manuscripts[0]
	require.Equal(t, "2025-03-041", m.ID)
	require.Equal(t, "Moduli of Surfaces", m.Title)
	require.Len(t, m.Referees, 3)

	require.Equal(t, "Ferrari, Marco", m.Referees[0].Name)
	require.Equal(t, editorial.StatusAccepted, m.Referees[0].Status)
	require.Equal(t, "2025-07-12", m.Referees[0].ResponseDate)

	require.Equal(t, editorial.StatusDeclined, m.Referees[1].Status)

	require.Equal(t, "Okafor, Ada", m.Referees[2].Name)
	require.Equal(t, editorial.StatusUnknown, m.Referees[2].Status)
}

func TestParseRefereeLine(t *testing.T) {
	r := parseRefereeLine("Curie (report submitted 2025-08-01)")
	require.Equal(t, "Curie", r.Name)
	require.Equal(t, editorial.StatusReportSubmitted, r.Status)
	require.Equal(t, "2025-08-01", r.ResponseDate)
}
