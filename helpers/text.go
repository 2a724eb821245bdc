package helpers

import (
	"errors"
	"net/url"
	"strings"
)

// nbsp is the non-breaking placeholder the listing pads empty cells with
const nbsp = " "

// GetSplitPart splits target by separate and returns the part at index
func GetSplitPart(target string, separate string, index int) (string, error) {
	parts := strings.Split(target, separate)
	if index >= len(parts) {
		return "", errors.New("index out of range")
	}
	return parts[index], nil
}

// QueryParam parses rawURL and returns the first value of the named
// query parameter, or false if the parameter is absent.
func QueryParam(rawURL, name string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	values := u.Query()[name]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

// CleanCellText strips the non-breaking placeholder and surrounding
// whitespace from a table cell's text. Empty cells normalize to "".
func CleanCellText(s string) string {
	return strings.TrimSpace(strings.Trim(s, nbsp))
}
