// Package dashboard provides the embedded web UI assets for todostream.
//
// This package uses Go's embed directive to include the dashboard HTML, CSS,
// and JavaScript at compile time. This enables single-binary deployment
// without external asset files.
//
// The embedded assets are served by the server package at the root path ("/").
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Todo list page with inline CSS and JavaScript
//
// The page renders the list from the /api/sse action stream and submits
// changes as plain HTML forms, so it also works with scripting disabled.
//
//go:embed assets/*
var Assets embed.FS
