package errors

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
)

// ErrorCollector collects per-file faults of one task run
type ErrorCollector struct {
	faults []error
	mutex  sync.Mutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{}
}

// Add records err; nil is ignored.
func (ec *ErrorCollector) Add(err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.faults = append(ec.faults, err)
}

// Err joins every recorded fault, or returns nil.
func (ec *ErrorCollector) Err() error {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	return errors.Join(ec.faults...)
}

// Overlay renders the faults of a failed run as an HTML fragment that the
// live-reload client shows on top of the page.
func Overlay(task string, err error) string {
	var b strings.Builder
	b.WriteString(`<div id="sitepipe-error-overlay" style="position:fixed;inset:0;background:rgba(0,0,0,.85);color:#fff;font:14px monospace;z-index:2147483647;padding:20px;overflow:auto">`)
	fmt.Fprintf(&b, `<h2 style="margin:0 0 16px;color:#ff6b6b">%s failed</h2>`, html.EscapeString(task))
	for _, e := range Split(err) {
		fmt.Fprintf(&b, `<pre style="background:#2d3748;padding:12px;border-left:4px solid #ff6b6b;white-space:pre-wrap">%s</pre>`, html.EscapeString(e.Error()))
	}
	b.WriteString(`</div>`)
	return b.String()
}
