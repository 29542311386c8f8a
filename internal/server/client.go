package server

import (
	"bytes"
	"context"
	"io"

	"github.com/a-h/templ"
)

// liveReloadTag is the tag injected into served pages. It carries the
// socket path of the server that served the page.
func liveReloadTag(socketPath string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<script src="`+ClientPath+`" data-socket="`+templ.EscapeString(socketPath)+`" defer></script>`)
		return err
	})
}

func renderSnippet(ctx context.Context, socketPath string) ([]byte, error) {
	var buf bytes.Buffer
	if err := liveReloadTag(socketPath).Render(ctx, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const clientScript = `(function () {
  "use strict";
  var overlayId = "sitepipe-error-overlay";
  var tag = document.currentScript;
  var socketPath = (tag && tag.getAttribute("data-socket")) || "` + SocketPath + `";
  var retry = 500;

  function clearOverlay() {
    var el = document.getElementById(overlayId);
    if (el) el.remove();
  }

  function bust(url) {
    var u = new URL(url, location.href);
    u.searchParams.set("livereload", Date.now());
    return u.toString();
  }

  function samePath(url, path) {
    return new URL(url, location.href).pathname === path;
  }

  function reloadStyles(path) {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    var hit = false;
    links.forEach(function (link) {
      if (samePath(link.href, path)) {
        link.href = bust(link.href);
        hit = true;
      }
    });
    if (!hit) location.reload();
  }

  function reloadAsset(path) {
    var hit = false;
    document.querySelectorAll("img, source, video").forEach(function (el) {
      var attr = el.src ? "src" : "srcset";
      var value = el.getAttribute(attr);
      if (value && samePath(value, path)) {
        el.setAttribute(attr, bust(value));
        hit = true;
      }
    });
    if (!hit && /\.(woff2?|ttf|otf|eot)$/.test(path)) reloadStyles("/style.css");
  }

  function connect() {
    var proto = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(proto + "//" + location.host + socketPath);
    ws.onopen = function () { retry = 500; };
    ws.onmessage = function (event) {
      var msg = JSON.parse(event.data);
      switch (msg.type) {
        case "reload":
          location.reload();
          break;
        case "css":
          clearOverlay();
          reloadStyles(msg.path);
          break;
        case "asset":
          reloadAsset(msg.path);
          break;
        case "error":
          clearOverlay();
          document.body.insertAdjacentHTML("beforeend", msg.content);
          break;
      }
    };
    ws.onclose = function () {
      setTimeout(connect, retry);
      retry = Math.min(retry * 2, 5000);
    };
  }

  connect();
})();
`
