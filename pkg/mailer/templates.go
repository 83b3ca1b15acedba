package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Template pairs a subject with text and HTML bodies rendered from the same data.
type Template struct {
	Subject string
	text    *texttemplate.Template
	html    *htmltemplate.Template
}

// MustTemplate parses the bodies and panics on malformed templates.
func MustTemplate(name, subject, text, html string) *Template {
	return &Template{
		Subject: subject,
		text:    texttemplate.Must(texttemplate.New(name).Parse(text)),
		html:    htmltemplate.Must(htmltemplate.New(name).Parse(html)),
	}
}

// Render executes both bodies with data.
func (t *Template) Render(data interface{}) (text, html string, err error) {
	var tb, hb bytes.Buffer
	if err := t.text.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := t.html.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return strings.TrimSpace(tb.String()), hb.String(), nil
}
