// Package dashboard embeds the fleet visualization's static assets
// and serves them over HTTP, in the manner of the teacher's embedded
// package bundling binaries with go:embed.
package dashboard

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var static embed.FS

// Handler serves the embedded dashboard at "/" on the control
// transport's address, alongside the WebSocket endpoint.
func Handler() http.Handler {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		// static/ is embedded at build time; a missing subtree here
		// means the embed directive itself is broken.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
