package fetcher

import (
	"bytes"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/htmlindex"
)

// DecodeHTML converts page bytes to UTF-8 using the charset declared in the
// document's meta tags. Pages without a declaration, or with an unknown one,
// are returned unchanged.
func DecodeHTML(page []byte) ([]byte, error) {
	charset := declaredCharset(page)
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return page, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return page, nil
	}
	out, err := enc.NewDecoder().Bytes(page)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode %s page", charset)
	}
	return out, nil
}

func declaredCharset(page []byte) string {
	z := html.NewTokenizer(bytes.NewReader(page))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom == atom.Body {
				return ""
			}
			if tok.DataAtom != atom.Meta {
				continue
			}
			var httpEquiv, content string
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "charset":
					return strings.TrimSpace(a.Val)
				case "http-equiv":
					httpEquiv = a.Val
				case "content":
					content = a.Val
				}
			}
			if strings.EqualFold(httpEquiv, "content-type") {
				if i := strings.Index(strings.ToLower(content), "charset="); i >= 0 {
					return strings.TrimSpace(content[i+len("charset="):])
				}
			}
		}
	}
}

// ExtractEmbeddedJSON returns the body of the first <script> element whose id
// equals scriptID, or, when scriptID is empty, the first script of type
// application/json.
func ExtractEmbeddedJSON(page []byte, scriptID string) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", eris.Wrap(err, "fetcher: parse html")
	}

	var found *html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Script && scriptMatches(n, scriptID) {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if found == nil {
		return "", eris.Errorf("fetcher: no embedded json script %q", scriptID)
	}
	body := strings.TrimSpace(textContent(found))
	if body == "" {
		return "", eris.Errorf("fetcher: embedded json script %q is empty", scriptID)
	}
	return body, nil
}

func scriptMatches(n *html.Node, scriptID string) bool {
	if scriptID != "" {
		return attr(n, "id") == scriptID
	}
	return strings.EqualFold(attr(n, "type"), "application/json")
}

// HTMLTables returns every <table> of the page. The first non-blank row of
// each table is its header.
func HTMLTables(page []byte) ([]Table, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse html")
	}

	var tables []Table
	var heading string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3, atom.H4:
				heading = strings.Join(strings.Fields(textContent(n)), " ")
				return
			case atom.Table:
				if t, ok := readTable(n); ok {
					if t.Title == "" {
						t.Title = heading
					}
					tables = append(tables, t)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

func readTable(table *html.Node) (Table, bool) {
	var t Table
	var rows func(n *html.Node)
	rows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.DataAtom {
			case atom.Caption:
				t.Title = strings.Join(strings.Fields(textContent(c)), " ")
			case atom.Thead, atom.Tbody, atom.Tfoot:
				rows(c)
			case atom.Tr:
				cells := readRow(c)
				if blank(cells) {
					continue
				}
				if t.Header == nil {
					t.Header = cells
					continue
				}
				t.Rows = append(t.Rows, cells)
			}
		}
	}
	rows(table)
	return t, t.Header != nil
}

func readRow(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Th || c.DataAtom == atom.Td) {
			cells = append(cells, strings.Join(strings.Fields(textContent(c)), " "))
		}
	}
	return cells
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
