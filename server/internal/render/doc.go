// Package render turns user-supplied message templates into text.
//
// Templates use text/template syntax against the map produced by package
// model, e.g. "{{.event.message}}" or
// "{{range .backlog}}{{.message}}\n{{end}}". Referencing a key that the model
// does not contain is an error rather than an empty string.
package render
