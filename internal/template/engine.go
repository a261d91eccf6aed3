package template

import (
	"bytes"
	"fmt"
	htmlTemplate "html/template"
	textTemplate "text/template"
)

// Engine renders a parsed message template. Templates are parsed once and
// executed per recipient.
type Engine struct {
	subject *textTemplate.Template
	html    *htmlTemplate.Template
	text    *textTemplate.Template
}

// NewEngine parses tmpl. Missing keys are errors so a typo in a variable
// name fails the first send instead of mailing an empty link.
func NewEngine(tmpl *Template) (*Engine, error) {
	if tmpl.Subject == "" {
		return nil, fmt.Errorf("subject template is empty")
	}
	if tmpl.HTML == "" && tmpl.Text == "" {
		return nil, fmt.Errorf("message has neither html nor text body")
	}

	e := &Engine{}
	var err error

	if e.subject, err = textTemplate.New("subject").Option("missingkey=error").Parse(tmpl.Subject); err != nil {
		return nil, fmt.Errorf("invalid subject template: %w", err)
	}

	if tmpl.HTML != "" {
		if e.html, err = htmlTemplate.New("html").Option("missingkey=error").Parse(tmpl.HTML); err != nil {
			return nil, fmt.Errorf("invalid html template: %w", err)
		}
	}

	if tmpl.Text != "" {
		if e.text, err = textTemplate.New("text").Option("missingkey=error").Parse(tmpl.Text); err != nil {
			return nil, fmt.Errorf("invalid text template: %w", err)
		}
	}

	return e, nil
}

// Render executes the template for one recipient
func (e *Engine) Render(data *Data) (*RenderResult, error) {
	result := &RenderResult{}
	var buf bytes.Buffer

	if err := e.subject.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render subject: %w", err)
	}
	result.Subject = buf.String()

	if e.html != nil {
		buf.Reset()
		if err := e.html.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("failed to render html: %w", err)
		}
		result.HTML = buf.String()
	}

	if e.text != nil {
		buf.Reset()
		if err := e.text.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("failed to render text: %w", err)
		}
		result.Text = buf.String()
	}

	return result, nil
}
