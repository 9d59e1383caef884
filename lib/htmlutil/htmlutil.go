package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("refassist.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

type Anchor struct {
	Name string
	Href string
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	newStr := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) {
			newStr.WriteRune(c)
		}
	}
	return newStr.String()
}

// CleanText trims an extracted cell or link label down to printable,
// single-spaced text.
func CleanText(s string) string {
	s = removeNonPrintable(s)
	s = strings.Trim(s, " \t\n")
	s = innerWhitespace.ReplaceAllString(s, " ")
	return s
}

func GetAnchors(ctx context.Context, sel *goquery.Selection) []Anchor {
	ctx, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			continue
		}

		name := CleanText(GetText(n))
		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors
}

// TableRow maps normalized header text to the cell selection under it.
type TableRow map[string]*goquery.Selection

// EachTableRow walks a <table>, builds a header-name -> column-index map from
// the first row containing <th> cells (or the first row if none has <th>),
// and calls fn once per data row with cells keyed by their header. Rows with
// no cells are skipped. Positional indexing is deliberately not exposed,
// markup reorders columns more often than it renames them.
func EachTableRow(table *goquery.Selection, fn func(row TableRow)) {
	headers := []string{}
	headerRowIndex := -1

	table.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		ths := tr.Find("th")
		cells := ths
		if ths.Length() == 0 {
			cells = tr.Find("td")
		}
		if cells.Length() == 0 {
			return true
		}
		cells.Each(func(_ int, cell *goquery.Selection) {
			headers = append(headers, strings.ToLower(CleanText(cell.Text())))
		})
		headerRowIndex = i
		return false
	})
	if headerRowIndex < 0 {
		return
	}

	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i <= headerRowIndex {
			return
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return
		}

		row := TableRow{}
		cells.Each(func(j int, cell *goquery.Selection) {
			if j < len(headers) {
				row[headers[j]] = cell
			}
		})
		fn(row)
	})
}

// Text returns the cleaned text of the cell under the given header, or ""
// when the table has no such column.
func (r TableRow) Text(header string) string {
	cell, ok := r[strings.ToLower(header)]
	if !ok {
		return ""
	}
	return CleanText(cell.Text())
}

// Lines splits the cell under the given header on <br> boundaries, returning
// one cleaned string per line. Portals bundle several referees into a single
// cell separated by <br> tags.
func (r TableRow) Lines(header string) []string {
	cell, ok := r[strings.ToLower(header)]
	if !ok {
		return nil
	}

	var lines []string
	var current bytes.Buffer
	flush := func() {
		line := CleanText(current.String())
		current.Reset()
		if line != "" {
			lines = append(lines, line)
		}
	}

	for _, n := range cell.Nodes {
		var walk func(node *html.Node)
		walk = func(node *html.Node) {
			if node == nil {
				return
			}
			if node.Type == html.ElementNode && node.Data == "br" {
				flush()
				return
			}
			if node.Type == html.TextNode {
				current.WriteString(node.Data)
				return
			}
			for child := node.FirstChild; child != nil; child = child.NextSibling {
				walk(child)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	flush()
	return lines
}
