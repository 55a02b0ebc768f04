// Package voicetest decodes rendered markup so tests can assert on verbs.
package voicetest

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Verb is one decoded markup element
type Verb struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Text    string     `xml:",chardata"`
	Inner   []Verb     `xml:",any"`
}

// Name is the element name, e.g. "Say"
func (v Verb) Name() string {
	return v.XMLName.Local
}

// Attr returns an attribute value
func (v Verb) Attr(name string) string {
	for _, a := range v.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// Document is a decoded <Response>
type Document struct {
	Verbs []Verb `xml:",any"`
}

// Parse decodes markup, failing the test on malformed input
func Parse(t testing.TB, markup string) Document {
	t.Helper()
	var doc Document
	require.NoError(t, xml.Unmarshal([]byte(markup), &doc), markup)
	return doc
}

// Names lists top-level verb names in order
func (d Document) Names() []string {
	names := make([]string, 0, len(d.Verbs))
	for _, v := range d.Verbs {
		names = append(names, v.Name())
	}
	return names
}

// Spoken joins every Say text, including Say nested in Gather
func (d Document) Spoken() string {
	var parts []string
	var walk func(vs []Verb)
	walk = func(vs []Verb) {
		for _, v := range vs {
			if v.Name() == "Say" {
				parts = append(parts, strings.TrimSpace(v.Text))
			}
			walk(v.Inner)
		}
	}
	walk(d.Verbs)
	return strings.Join(parts, " ")
}

// Find returns the first verb with name at any depth
func (d Document) Find(name string) (Verb, bool) {
	var walk func(vs []Verb) (Verb, bool)
	walk = func(vs []Verb) (Verb, bool) {
		for _, v := range vs {
			if v.Name() == name {
				return v, true
			}
			if found, ok := walk(v.Inner); ok {
				return found, true
			}
		}
		return Verb{}, false
	}
	return walk(d.Verbs)
}

// HangsUp reports whether the last top-level verb is Hangup
func (d Document) HangsUp() bool {
	return len(d.Verbs) > 0 && d.Verbs[len(d.Verbs)-1].Name() == "Hangup"
}
