// Package web holds the single page browser client served at "/".
package web

import (
	_ "embed"
)

// IndexHTML is the browser client. It posts to /ask on the same origin.
//
//go:embed index.html
var IndexHTML []byte
