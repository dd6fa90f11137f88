package xmlout

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Nesting(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Open("Market", Attr{Name: "name", Value: "USAoil"})
	w.Element("price", 2.5)
	w.Element("solveMarket", true)
	w.Open("inner")
	w.Element("good", "a<b")
	w.Close("inner")
	w.Close("Market")
	require.NoError(t, w.Err())

	want := "<Market name=\"USAoil\">\n" +
		"\t<price>2.5</price>\n" +
		"\t<solveMarket>1</solveMarket>\n" +
		"\t<inner>\n" +
		"\t\t<good>a&lt;b</good>\n" +
		"\t</inner>\n" +
		"</Market>\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 0, w.Tabs().Depth())
}

func TestTabs_NeverNegative(t *testing.T) {
	var tabs Tabs
	tabs.Decrease()
	assert.Equal(t, 0, tabs.Depth())
	tabs.Increase()
	tabs.Increase()
	tabs.Decrease()
	assert.Equal(t, 1, tabs.Depth())
}

type failWriter struct{ n int }

func (f *failWriter) Write(p []byte) (int, error) {
	f.n++
	return 0, errors.New("disk full")
}

func TestWriter_StickyError(t *testing.T) {
	fw := &failWriter{}
	w := NewWriter(fw)
	w.Element("a", 1)
	w.Element("b", 2)
	assert.EqualError(t, w.Err(), "disk full")
	assert.Equal(t, 1, fw.n)
}
