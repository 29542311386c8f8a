package transform

import (
	"github.com/tdewolff/minify/v2"
	mincss "github.com/tdewolff/minify/v2/css"
	minhtml "github.com/tdewolff/minify/v2/html"
)

const (
	MediaCSS  = "text/css"
	MediaHTML = "text/html"
)

// Minifier shrinks rendered output. The zero value is not usable; build one
// with NewMinifier.
type Minifier struct {
	m *minify.M
}

// NewMinifier registers the CSS and HTML minifiers.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc(MediaCSS, mincss.Minify)
	m.Add(MediaHTML, &minhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})
	return &Minifier{m: m}
}

// Bytes minifies data of the given media type.
func (mf *Minifier) Bytes(mediatype string, data []byte) ([]byte, error) {
	return mf.m.Bytes(mediatype, data)
}
