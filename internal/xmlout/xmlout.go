// Package xmlout writes the tab-indented tagged text used by the debug dumps.
// The output is meant for humans inspecting a run, not for reloading.
package xmlout

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Tabs tracks the current indentation depth of a dump.
type Tabs struct {
	depth int
}

// Increase moves one level deeper.
func (t *Tabs) Increase() { t.depth++ }

// Decrease moves one level up. It never goes below zero.
func (t *Tabs) Decrease() {
	if t.depth > 0 {
		t.depth--
	}
}

// Depth returns the current indentation depth.
func (t *Tabs) Depth() int { return t.depth }

// Attr is a single tag attribute.
type Attr struct {
	Name  string
	Value string
}

// Writer emits tags with indentation. The first write error is kept and every
// later call becomes a no-op, so callers check Err once at the end.
type Writer struct {
	out  io.Writer
	tabs Tabs
	err  error
}

// NewWriter wraps out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Tabs exposes the indentation tracker shared by nested writers.
func (w *Writer) Tabs() *Tabs { return &w.tabs }

// Err returns the first error encountered.
func (w *Writer) Err() error { return w.err }

// Open writes an opening tag and increases the indent.
func (w *Writer) Open(name string, attrs ...Attr) {
	w.line("<" + name + formatAttrs(attrs) + ">")
	w.tabs.Increase()
}

// Close decreases the indent and writes the closing tag.
func (w *Writer) Close(name string) {
	w.tabs.Decrease()
	w.line("</" + name + ">")
}

// Element writes <name attrs>value</name> on a single line.
func (w *Writer) Element(name string, value any, attrs ...Attr) {
	w.line("<" + name + formatAttrs(attrs) + ">" + escape(formatValue(value)) + "</" + name + ">")
}

func (w *Writer) line(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.out, strings.Repeat("\t", w.tabs.depth)+s+"\n")
}

func formatAttrs(attrs []Attr) string {
	if len(attrs) == 0 {
		return ""
	}
	var b strings.Builder
	for _, a := range attrs {
		b.WriteString(" ")
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(escape(a.Value))
		b.WriteString(`"`)
	}
	return b.String()
}

func formatValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case int:
		return strconv.Itoa(t)
	case bool:
		if t {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func escape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
