// Package migrations embeds the goose SQL migrations for every bounded context.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed lending/*.sql
var files embed.FS

// Lending returns the lending migrations rooted at their directory.
func Lending() fs.FS {
	sub, err := fs.Sub(files, "lending")
	if err != nil {
		panic(err) // the embed pattern guarantees the directory exists
	}
	return sub
}
