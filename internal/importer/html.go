package importer

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var reSpaces = regexp.MustCompile(`\s+`)

// parseHTMLTable reads the first table of a legacy ".xls" export, which is
// really an HTML document. Older exports arrive GB18030-encoded, so content
// that is not valid UTF-8 is transcoded first.
func parseHTMLTable(content []byte) (parsed, error) {
	if !utf8.Valid(content) {
		decoded, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), content)
		if err != nil {
			return parsed{}, fmt.Errorf("decode gb18030: %w", err)
		}
		content = decoded
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return parsed{}, err
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return parsed{}, fmt.Errorf("document has no table")
	}

	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, normalizeSpaces(cell.Text()))
		})
		rows = append(rows, cells)
	})

	return rowsToOrders(rows)
}

// normalizeSpaces collapses rendered HTML whitespace the way a browser would.
func normalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}
