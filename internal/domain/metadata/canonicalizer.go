// Package metadata turns free-text placemark descriptions into canonical zone attributes.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Strategy names the parsing strategy that produced a set of attributes.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyLines      Strategy = "lines"
)

// Attributes is the canonicalized form of a description.
type Attributes struct {
	// Fields holds values under canonical keys only.
	Fields map[Key]Value
	// Extra holds keys the synonym table does not know, under their cleaned form.
	Extra map[string]Value
	// Notes holds lines that had no key/value separator, verbatim.
	Notes    []string
	Strategy Strategy
	// FallbackUsed is set when the text looked structured but could not be decoded as an object.
	FallbackUsed bool
}

// Get returns the value stored under a canonical key.
func (a Attributes) Get(key Key) (Value, bool) {
	v, ok := a.Fields[key]
	return v, ok
}

// Canonicalizer converts descriptions using a fixed synonym table.
type Canonicalizer struct {
	synonyms SynonymTable
}

// NewCanonicalizer creates a Canonicalizer over the given table.
func NewCanonicalizer(synonyms SynonymTable) *Canonicalizer {
	return &Canonicalizer{synonyms: synonyms}
}

// Canonicalize converts raw with the built-in synonym table.
func Canonicalize(raw string) Attributes {
	return NewCanonicalizer(DefaultSynonyms()).Canonicalize(raw)
}

// Canonicalize tries the structured strategy for text starting with "{" and
// falls back to line parsing when the text is not a JSON object. It never fails.
func (c *Canonicalizer) Canonicalize(raw string) Attributes {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		attrs := c.newAttributes(StrategyStructured)
		if err := c.fromObject(trimmed, &attrs); err == nil {
			return attrs
		}
		fallback := c.fromLines(trimmed)
		fallback.FallbackUsed = true
		return fallback
	}
	return c.fromLines(trimmed)
}

// CanonicalKey maps a raw key to its canonical key, if any, and returns the cleaned form.
func (c *Canonicalizer) CanonicalKey(raw string) (Key, string, bool) {
	cleaned := CleanKey(raw)
	key, ok := c.synonyms.Lookup(cleaned)
	return key, cleaned, ok
}

func (c *Canonicalizer) newAttributes(strategy Strategy) Attributes {
	return Attributes{
		Fields:   make(map[Key]Value),
		Extra:    make(map[string]Value),
		Strategy: strategy,
	}
}

func (c *Canonicalizer) put(attrs *Attributes, rawKey string, v Value) bool {
	key, cleaned, ok := c.CanonicalKey(rawKey)
	if ok {
		attrs.Fields[key] = v
		return true
	}
	if cleaned == "" {
		return false
	}
	attrs.Extra[cleaned] = v
	return true
}

// fromObject decodes a JSON object member by member so later keys overwrite
// earlier synonyms in document order.
func (c *Canonicalizer) fromObject(text string, attrs *Attributes) error {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.New("not a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		rawKey, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", keyTok)
		}

		var member json.RawMessage
		if err := dec.Decode(&member); err != nil {
			return err
		}
		v, ok, err := jsonValue(member)
		if err != nil {
			return err
		}
		if ok {
			c.put(attrs, rawKey, v)
		}
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("trailing data after JSON object")
	}
	return nil
}

// jsonValue converts one JSON member. ok is false for null.
func jsonValue(member json.RawMessage) (Value, bool, error) {
	trimmed := bytes.TrimSpace(member)
	if len(trimmed) == 0 {
		return Value{}, false, errors.New("empty JSON value")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Value{}, false, err
		}
		return Coerce(s), true, nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return Value{}, false, err
		}
		return BoolValue(b, string(trimmed)), true, nil
	case 'n':
		return Value{}, false, nil
	case '{', '[':
		var compact bytes.Buffer
		if err := json.Compact(&compact, trimmed); err != nil {
			return Value{}, false, err
		}
		return TextValue(compact.String()), true, nil
	default:
		n, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return Value{}, false, err
		}
		return NumberValue(n, string(trimmed)), true, nil
	}
}

func (c *Canonicalizer) fromLines(text string) Attributes {
	attrs := c.newAttributes(StrategyLines)
	for _, line := range textLines(text) {
		rawKey, rawValue, ok := splitLine(line)
		if !ok || !c.put(&attrs, rawKey, Coerce(rawValue)) {
			attrs.Notes = append(attrs.Notes, line)
		}
	}
	return attrs
}

// splitLine splits on the first colon, or failing that on the first " - ".
func splitLine(line string) (key, value string, ok bool) {
	if i := strings.Index(line, ":"); i >= 0 {
		return line[:i], line[i+1:], true
	}
	if i := strings.Index(line, " - "); i >= 0 {
		return line[:i], line[i+3:], true
	}
	return "", "", false
}

var lineBreakTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "tr": true,
	"table": true, "ul": true, "ol": true, "hr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// textLines reduces description markup to non-empty trimmed lines. Block and
// break tags become line breaks, other HTML tags are dropped, and entities are
// decoded. Tags that are not HTML elements, such as "<North>", stay as text.
func textLines(text string) []string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	skip := 0

tokens:
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			break tokens
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			raw := append([]byte(nil), z.Raw()...)
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case atom.Lookup(name) == 0:
				if skip == 0 {
					b.Write(raw)
				}
			case tag == "script" || tag == "style":
				if tt == html.EndTagToken {
					if skip > 0 {
						skip--
					}
				} else if tt == html.StartTagToken {
					skip++
				}
			case lineBreakTags[tag]:
				b.WriteByte('\n')
			case (tag == "td" || tag == "th") && tt != html.EndTagToken:
				b.WriteByte(' ')
			}
		}
	}

	var lines []string
	for _, line := range strings.Split(b.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
