package utils

import (
	"github.com/teris-io/shortid"
)

// GenerateJoinCode returns a short, URL-safe code for a room join link.
func GenerateJoinCode() (string, error) {
	return shortid.Generate()
}
