package template

import (
	"github.com/foxzi/campaigner/internal/models"
)

// Template is the source of a campaign email
type Template struct {
	Subject string
	HTML    string
	Text    string
}

// Data is passed to every template execution
type Data struct {
	From     string
	FromName string
	Campaign string
	Contact  *models.Contact
	Vars     map[string]string
}

// RenderResult contains rendered template output
type RenderResult struct {
	Subject string `json:"subject"`
	HTML    string `json:"html,omitempty"`
	Text    string `json:"text,omitempty"`
}
