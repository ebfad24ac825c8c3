package utils

import "github.com/microcosm-cc/bluemonday"

// User-generated content policy: common formatting allowed, scripts stripped.
var sanitizer = bluemonday.UGCPolicy()

// Sanitize cleans submitted HTML content before it enters the pipeline.
func Sanitize(input string) string {
	return sanitizer.Sanitize(input)
}
