package document

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxSpan = 100

// ParseHTMLTables converts every <table> in s into a grid of cell texts.
// Cells spanning several rows or columns are repeated into each slot they
// cover.
func ParseHTMLTables(s string) [][][]string {
	root, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return nil
	}
	var tables [][][]string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			if t := tableGrid(n); len(t) > 0 {
				tables = append(tables, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return tables
}

type spanCell struct {
	text      string
	remaining int
}

func tableGrid(table *html.Node) [][]string {
	var rows []*html.Node
	collectRows(table, &rows)

	var grid [][]string
	pending := map[int]*spanCell{} // column → cell continuing from a row above
	for _, tr := range rows {
		var row []string
		col := 0
		fill := func() {
			for {
				sc, ok := pending[col]
				if !ok {
					return
				}
				row = append(row, sc.text)
				sc.remaining--
				if sc.remaining == 0 {
					delete(pending, col)
				}
				col++
			}
		}
		for c := tr.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
				continue
			}
			fill()
			text := strings.Join(strings.Fields(nodeText(c)), " ")
			rowspan := spanAttr(c, "rowspan")
			colspan := spanAttr(c, "colspan")
			for i := 0; i < colspan; i++ {
				row = append(row, text)
				if rowspan > 1 {
					pending[col] = &spanCell{text: text, remaining: rowspan - 1}
				}
				col++
			}
		}
		fill()
		if len(row) > 0 {
			grid = append(grid, row)
		}
	}
	return grid
}

// collectRows gathers <tr> elements, skipping nested tables.
func collectRows(n *html.Node, rows *[]*html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Tr:
			*rows = append(*rows, c)
		case atom.Table:
		default:
			collectRows(c, rows)
		}
	}
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && n.DataAtom == atom.Br:
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.P || n.DataAtom == atom.Div) {
			sb.WriteByte(' ')
		}
	}
	walk(n)
	return sb.String()
}

func spanAttr(n *html.Node, key string) int {
	for _, a := range n.Attr {
		if a.Key == key {
			v, err := strconv.Atoi(strings.TrimSpace(a.Val))
			if err != nil || v < 1 {
				return 1
			}
			return min(v, maxSpan)
		}
	}
	return 1
}
