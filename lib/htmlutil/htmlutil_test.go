package htmlutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const listingHtml = `
<html><body>
<table id="manuscripts">
  <tr><th> Manuscript ID </th><th>Title</th><th>Referees</th></tr>
  <tr>
    <td>M172838</td>
    <td>On the Stability of a Thing</td>
    <td>Ferrari, Marco<br>Smith, John<br></td>
  </tr>
  <tr>
    <td>M172901</td>
    <td>Another Result</td>
    <td></td>
  </tr>
</table>
<a href="/cgi-bin/main.plex?form_type=view_ms">  View
  Manuscript</a>
</body></html>`

func mustDoc(t *testing.T, raw string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBufferString(raw))
	require.NoError(t, err)
	return doc
}

func TestEachTableRow(t *testing.T) {
	doc := mustDoc(t, listingHtml)

	var ids []string
	var titles []string
	EachTableRow(doc.Find("table#manuscripts"), func(row TableRow) {
		ids = append(ids, row.Text("manuscript id"))
		titles = append(titles, row.Text("title"))
	})

	require.Equal(t, []string{"M172838", "M172901"}, ids)
	require.Equal(t, []string{"On the Stability of a Thing", "Another Result"}, titles)
}

func TestTableRowLines(t *testing.T) {
	doc := mustDoc(t, listingHtml)

	var referees [][]string
	EachTableRow(doc.Find("table#manuscripts"), func(row TableRow) {
		referees = append(referees, row.Lines("referees"))
	})

	require.Len(t, referees, 2)
	require.Equal(t, []string{"Ferrari, Marco", "Smith, John"}, referees[0])
	require.Empty(t, referees[1])
}

func TestTableRowMissingColumn(t *testing.T) {
	doc := mustDoc(t, listingHtml)

	EachTableRow(doc.Find("table#manuscripts"), func(row TableRow) {
		require.Equal(t, "", row.Text("no such header"))
		require.Nil(t, row.Lines("no such header"))
	})
}

func TestGetAnchors(t *testing.T) {
	doc := mustDoc(t, listingHtml)

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Len(t, anchors, 1)
	require.Equal(t, "View Manuscript", anchors[0].Name)
	require.Equal(t, "/cgi-bin/main.plex?form_type=view_ms", anchors[0].Href)
}
