package server

import "time"

// Message types pushed to browser clients.
const (
	// TypeReload asks the page to reload in full.
	TypeReload = "reload"
	// TypeCSS asks the page to refetch the stylesheet at Path.
	TypeCSS = "css"
	// TypeAsset reports one rewritten asset at Path.
	TypeAsset = "asset"
	// TypeError carries an overlay describing a failed task in Content.
	TypeError = "error"
)

// Message is the JSON payload sent over the live-reload socket.
type Message struct {
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
