// Package model defines the core domain models used throughout the application.
package model

// Company is a registered recipient of documents. Name is matched exactly
// against identifiers extracted from file names.
type Company struct {
	Name     string   `json:"-"`
	Template string   `json:"template"`
	Emails   []string `json:"emails"`
}

// Template is a named subject/body pair containing {token} placeholders.
type Template struct {
	Name    string `json:"-"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
