package sitemap

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// ErrParse is returned when a document is not well-formed XML.
var ErrParse = errors.New("error processing sitemap")

// Entry is a discovered page location.
type Entry struct {
	Location     string `json:"location"`
	LastModified string `json:"lastModified"`
}

// Ref is the text content of a <url> or <sitemap> element.
type Ref struct {
	Loc     string
	LastMod string
}

// Document is one of *IndexDocument, *URLSetDocument or *EmptyDocument.
type Document interface {
	document()
}

// IndexDocument is a <sitemapindex> whose refs point at other sitemaps.
type IndexDocument struct {
	Refs []Ref
}

// URLSetDocument is a <urlset> listing page locations.
type URLSetDocument struct {
	URLs []Ref
}

// EmptyDocument has neither <sitemap> nor <url> children. Root is the
// local name of the root element.
type EmptyDocument struct {
	Root  string
	Title string // <title> when the body is an HTML page
}

func (*IndexDocument) document()  {}
func (*URLSetDocument) document() {}
func (*EmptyDocument) document()  {}

// Parse parses raw XML bytes and classifies the root element. A root with
// <sitemap> children is an index; otherwise a root with <url> children is
// a urlset; anything else is empty. Namespaces are ignored.
func Parse(data []byte) (Document, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		if title, ok := HTMLTitle(data); ok {
			return nil, fmt.Errorf("%w: %v (got HTML page %q)", ErrParse, err, title)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	root := rootElement(doc)
	if root == nil {
		return nil, fmt.Errorf("%w: document has no root element", ErrParse)
	}

	if refs := childRefs(root, "sitemap"); len(refs) > 0 {
		return &IndexDocument{Refs: refs}, nil
	}
	if refs := childRefs(root, "url"); len(refs) > 0 {
		return &URLSetDocument{URLs: refs}, nil
	}

	empty := &EmptyDocument{Root: root.Data}
	if strings.EqualFold(root.Data, "html") {
		empty.Title, _ = HTMLTitle(data)
	}
	return empty, nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

// childRefs collects direct children of parent named name, in document order.
func childRefs(parent *xmlquery.Node, name string) []Ref {
	var refs []Ref
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		if n.Type != xmlquery.ElementNode || n.Data != name {
			continue
		}
		refs = append(refs, Ref{
			Loc:     childText(n, "loc"),
			LastMod: childText(n, "lastmod"),
		})
	}
	return refs
}

func childText(parent *xmlquery.Node, name string) string {
	for n := parent.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode && n.Data == name {
			return strings.TrimSpace(n.InnerText())
		}
	}
	return ""
}
