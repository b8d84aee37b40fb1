package chdata

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// FilingDocument is one filing as read from an archive entry or downloaded
// from the registry. It is transient: created by a corpus source, discarded
// after extraction.
type FilingDocument struct {
	Name          string // source filename or synthetic name for downloads
	CompanyNumber string
	FilingDate    string // YYYY-MM-DD, from the archive entry name or API metadata
	Content       []byte
}

// eligibleExtensions lists the file extensions that may contain parseable
// filing data. Anything else is skipped without being read.
var eligibleExtensions = map[string]bool{
	".xml":   true,
	".xbrl":  true,
	".html":  true,
	".xhtml": true,
}

// EligibleFilename reports whether a filename's extension marks it as a
// parseable filing document.
func EligibleFilename(name string) bool {
	return eligibleExtensions[strings.ToLower(filepath.Ext(name))]
}

// CompanyNumberFromFilename extracts the company number from an archive
// entry name in the {processnum}_{...}_{company_number}_{yyyymmdd}.{ext}
// scheme. The company number is the third underscore-delimited field.
// Returns "" when the name does not follow the scheme.
func CompanyNumberFromFilename(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) > 2 {
		return parts[2]
	}
	return ""
}

// FilingDateFromFilename extracts the filing date from an archive entry
// name: the fourth underscore-delimited field, first 8 digits taken as
// yyyymmdd and reformatted YYYY-MM-DD. Returns "" when the name does not
// follow the scheme.
func FilingDateFromFilename(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) <= 3 {
		return ""
	}
	dateStr, _, _ := strings.Cut(parts[3], ".")
	if len(dateStr) < 8 {
		return ""
	}
	dateStr = dateStr[:8]
	for _, r := range dateStr {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return fmt.Sprintf("%s-%s-%s", dateStr[:4], dateStr[4:6], dateStr[6:8])
}

// Document formats distinguished by content sniffing.
const (
	FormatInline     = "inline"     // inline XBRL embedded in XHTML
	FormatStandalone = "standalone" // bare XBRL instance document
	FormatHTML       = "html"       // legacy HTML table layout
)

// DetectFilingFormat determines whether the data is inline XBRL, a bare
// XBRL instance, or plain HTML (table-fallback only).
func DetectFilingFormat(data []byte) string {
	content := string(data)

	if strings.Contains(content, "xmlns:ix=") ||
		strings.Contains(content, "<ix:") ||
		strings.Contains(content, "inlineXBRL") {
		return FormatInline
	}

	if strings.Contains(content, "<xbrl") || strings.Contains(content, "xmlns:xbrli=") {
		return FormatStandalone
	}

	return FormatHTML
}

// InlineFact is one tagged fact lifted from a document before any concept
// resolution: the raw name attribute, text content and sign marker, plus
// where in the document it sat.
type InlineFact struct {
	Name       string // as tagged, e.g. "c:TurnoverRevenue"
	Text       string
	Sign       string // sign marker attribute, "" when absent
	Hidden     bool   // inside an ix:hidden region
	NonNumeric bool   // tagged ix:nonNumeric rather than ix:nonFraction
}

// ParsedDocument is the structural view of one filing that the extraction
// stages query: the declared namespace table, the tagged facts, and the
// table rows for the label-scraping fallback.
type ParsedDocument struct {
	// Namespaces maps declared prefix -> URI. A default (unprefixed)
	// namespace is recorded under DefaultNamespacePrefix.
	Namespaces map[string]string
	Facts      []InlineFact
	Rows       [][]string // table rows as cleaned cell texts
}

// ParseFilingDocument parses raw filing bytes into a ParsedDocument. For
// inline and standalone XBRL, the XML pass collects namespace declarations
// and inline facts; legacy HTML skips that pass, so markup that is not
// well-formed XML still parses (facts empty, rows populated). The HTML pass
// always runs to collect table rows for the fallback. An error is returned
// only when the content yields no structure at all.
func ParseFilingDocument(content []byte) (*ParsedDocument, error) {
	doc := &ParsedDocument{Namespaces: make(map[string]string)}

	var xmlErr error
	if DetectFilingFormat(content) != FormatHTML {
		xmlErr = walkXML(doc, content)
	}
	rows, htmlErr := scanTables(content)
	doc.Rows = rows

	if htmlErr != nil && xmlErr != nil {
		return nil, fmt.Errorf("document parse failed: %w", xmlErr)
	}
	if len(doc.Namespaces) == 0 && len(doc.Facts) == 0 && len(doc.Rows) == 0 {
		if xmlErr != nil {
			return nil, fmt.Errorf("document parse failed: %w", xmlErr)
		}
		return nil, fmt.Errorf("document contains no recognizable structure")
	}

	return doc, nil
}

// walkXML tokenizes the content, recording xmlns declarations and inline
// XBRL facts. Non-fatal decoding problems skip the element; an error before
// anything was collected is reported to the caller.
func walkXML(doc *ParsedDocument, content []byte) error {
	decoder := xml.NewDecoder(bytes.NewReader(content))
	decoder.Strict = false
	decoder.AutoClose = xml.HTMLAutoClose
	decoder.Entity = xml.HTMLEntity
	decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		// Treat declared charsets as UTF-8; registry documents are.
		return input, nil
	}

	hiddenDepth := 0
	sawToken := false

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if !sawToken {
				return err
			}
			return nil // salvage what was collected before the bad region
		}
		sawToken = true

		switch elem := token.(type) {
		case xml.StartElement:
			recordNamespaces(doc, elem.Attr)

			switch elem.Name.Local {
			case "hidden":
				hiddenDepth++
			case "nonFraction", "nonNumeric":
				fact := InlineFact{
					Name:       getAttr(elem.Attr, "name"),
					Sign:       getAttr(elem.Attr, "sign"),
					Hidden:     hiddenDepth > 0,
					NonNumeric: elem.Name.Local == "nonNumeric",
				}
				if fact.Name == "" {
					continue
				}
				var value string
				if err := decoder.DecodeElement(&value, &elem); err != nil {
					continue
				}
				fact.Text = strings.TrimSpace(value)
				doc.Facts = append(doc.Facts, fact)
			}

		case xml.EndElement:
			if elem.Name.Local == "hidden" && hiddenDepth > 0 {
				hiddenDepth--
			}
		}
	}
}

// recordNamespaces captures xmlns declarations from an element's attributes.
// A default namespace (bare xmlns=) is materialized under the synthetic
// DefaultNamespacePrefix so it still participates in taxonomy matching.
func recordNamespaces(doc *ParsedDocument, attrs []xml.Attr) {
	for _, attr := range attrs {
		switch {
		case attr.Name.Space == "xmlns":
			doc.Namespaces[attr.Name.Local] = attr.Value
		case attr.Name.Space == "" && attr.Name.Local == "xmlns":
			doc.Namespaces[DefaultNamespacePrefix] = attr.Value
		}
	}
}

// getAttr gets an attribute value by local name.
func getAttr(attrs []xml.Attr, name string) string {
	for _, attr := range attrs {
		if attr.Name.Local == name {
			return attr.Value
		}
	}
	return ""
}

// scanTables parses the content with the HTML tokenizer (tolerant of legacy
// markup) and returns every table row as cleaned cell texts.
func scanTables(content []byte) ([][]string, error) {
	root, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var rows [][]string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			if cells := rowCells(n); len(cells) > 0 {
				rows = append(rows, cells)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	return rows, nil
}

// rowCells extracts the cleaned text of each td/th cell in a row.
func rowCells(tr *html.Node) []string {
	var cells []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
			cells = append(cells, CleanCellText(nodeText(n)))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(tr)
	return cells
}

// nodeText concatenates all text content under a node.
func nodeText(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
			buf.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return buf.String()
}
