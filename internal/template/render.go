package template

import (
	"fmt"
	"regexp"
)

// Variable references look like {{name}} or {{ name }}.
var varPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.\-]+)\s*\}\}`)

// Render substitutes named variables into content. Unresolved variables
// render as an empty string rather than failing the whole render, so one
// missing variable never blocks a notification.
func Render(content string, vars map[string]any) string {
	if content == "" {
		return ""
	}

	return varPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := varPattern.FindStringSubmatch(match)[1]
		val, ok := vars[name]
		if !ok || val == nil {
			return ""
		}
		return fmt.Sprint(val)
	})
}
