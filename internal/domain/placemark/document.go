package placemark

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"golang.org/x/net/html/charset"
)

var (
	// ErrDocumentUnparsable is returned when the upload is not well-formed markup.
	ErrDocumentUnparsable = errors.New("document is not well-formed markup")

	// ErrNoGeometryFound is returned when the document parses but holds no Placemark.
	ErrNoGeometryFound = errors.New("no placemark found in document")
)

var utf8BOM = []byte("\xef\xbb\xbf")

// parseDocument reads the whole document and returns its root element.
// Element.Space holds the prefix as written, so qualified lookups behave like
// a DOM getElementsByTagName.
func parseDocument(doc []byte) (*etree.Element, error) {
	d := etree.NewDocument()
	d.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Entity:        xml.HTMLEntity,
		ValidateInput: true,
	}
	if err := d.ReadFromBytes(bytes.TrimPrefix(doc, utf8BOM)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDocumentUnparsable, err)
	}

	var root *etree.Element
	for _, tok := range d.Child {
		switch t := tok.(type) {
		case *etree.Element:
			if root != nil {
				return nil, fmt.Errorf("%w: multiple root elements", ErrDocumentUnparsable)
			}
			root = t
		case *etree.CharData:
			if strings.TrimSpace(t.Data) != "" {
				return nil, fmt.Errorf("%w: text outside root element", ErrDocumentUnparsable)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrDocumentUnparsable)
	}
	return root, nil
}

// findAll looks tag up by qualified name first and, when that finds nothing,
// falls back to matching the local name under any namespace prefix. Results
// are in document order.
func findAll(e *etree.Element, tag string, self bool) []*etree.Element {
	found := descendants(e, self, func(n *etree.Element) bool { return n.FullTag() == tag })
	if len(found) > 0 {
		return found
	}
	return descendants(e, self, func(n *etree.Element) bool { return n.Tag == tag })
}

// findFirst returns the first match of findAll below e, or nil.
func findFirst(e *etree.Element, tag string) *etree.Element {
	found := findAll(e, tag, false)
	if len(found) == 0 {
		return nil
	}
	return found[0]
}

func descendants(e *etree.Element, self bool, match func(*etree.Element) bool) []*etree.Element {
	var out []*etree.Element
	var walk func(n *etree.Element)
	walk = func(n *etree.Element) {
		if (self || n != e) && match(n) {
			out = append(out, n)
		}
		for _, c := range n.ChildElements() {
			walk(c)
		}
	}
	walk(e)
	return out
}

// textContent concatenates every descendant text node in document order.
func textContent(e *etree.Element) string {
	var b strings.Builder
	var write func(n *etree.Element)
	write = func(n *etree.Element) {
		for _, tok := range n.Child {
			switch t := tok.(type) {
			case *etree.CharData:
				b.WriteString(t.Data)
			case *etree.Element:
				write(t)
			}
		}
	}
	write(e)
	return b.String()
}
