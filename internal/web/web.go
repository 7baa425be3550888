// Package web embeds the dashboard bundle. The frontend build writes into
// dist/; the checked-in index.html is served until it does.
package web

import (
	"embed"
	"io/fs"
)

//go:embed dist
var dist embed.FS

// Dist returns the bundle rooted at dist/.
func Dist() (fs.FS, error) {
	return fs.Sub(dist, "dist")
}
