// Package assets embeds the browser client served with previews and the editor.
package assets

import "embed"

//go:embed client/*
var clientFS embed.FS

// Asset is one embedded client file.
type Asset struct {
	Data        []byte
	ContentType string
}

// published maps the public /assets/{name} names to embedded files.
var published = map[string]struct {
	file        string
	contentType string
}{
	"client.js":  {"client/listingkit-client.js", "application/javascript"},
	"client.css": {"client/listingkit.css", "text/css; charset=utf-8"},
}

// Lookup returns the asset published under name.
func Lookup(name string) (Asset, bool) {
	entry, ok := published[name]
	if !ok {
		return Asset{}, false
	}
	data, err := clientFS.ReadFile(entry.file)
	if err != nil {
		return Asset{}, false
	}
	return Asset{Data: data, ContentType: entry.contentType}, true
}

// Names lists the published asset names.
func Names() []string {
	names := make([]string, 0, len(published))
	for name := range published {
		names = append(names, name)
	}
	return names
}
