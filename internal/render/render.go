// Package render holds the text templates used for outgoing mail.
package render

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Engine renders templates embedded in the package.
type Engine struct {
	templates *template.Template
}

// New parses all embedded templates.
func New() (*Engine, error) {
	t, err := template.New("render").Funcs(template.FuncMap{
		"upper": strings.ToUpper,
	}).ParseFS(templatesFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Engine{templates: t}, nil
}

// Render executes the named template with data.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.templates == nil {
		return "", fmt.Errorf("nil engine")
	}

	buf := bytes.NewBuffer(nil)
	if err := e.templates.ExecuteTemplate(buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// VerificationEmail is the data for the verify_email templates.
type VerificationEmail struct {
	Email     string
	Link      string
	ExpiresIn string
}

// Verification renders the subject and body of a verification message.
func (e *Engine) Verification(data VerificationEmail) (subject, body string, err error) {
	subject, err = e.Render("verify_email_subject", data)
	if err != nil {
		return "", "", err
	}
	body, err = e.Render("verify_email_body", data)
	if err != nil {
		return "", "", err
	}
	return strings.TrimSpace(subject), body, nil
}
