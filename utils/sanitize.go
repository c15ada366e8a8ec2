package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicy  = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize keeps safe formatting markup and drops everything that could run script. Used for notes.
func Sanitize(input string) string {
	return richPolicy.Sanitize(input)
}

// SanitizeText strips all markup, for single-line values such as habit names and usernames.
func SanitizeText(input string) string {
	return html.UnescapeString(plainPolicy.Sanitize(input))
}
