// Package footer renders the page footer shared by server-rendered and statically generated pages.
package footer

import (
	"bytes"
	"html/template"
)

// Link describes one footer navigation entry.
type Link struct {
	Label string
	URL   string
}

// Config captures the footer text and links.
type Config struct {
	ElementID  string
	PrefixText string
	Links      []Link
}

var footerTemplate = template.Must(template.New("footer").Parse(`<footer id="{{.ElementID}}">
  <span>{{.PrefixText}}</span>
  <nav>
    {{range .Links}}<a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Label}}</a>
    {{end}}
  </nav>
</footer>`))

// Render returns the footer HTML for the provided configuration.
func Render(config Config) (template.HTML, error) {
	var buffer bytes.Buffer
	if err := footerTemplate.Execute(&buffer, config); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}
