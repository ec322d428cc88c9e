package email

import (
	"regexp"
	"strings"
)

// Analyst-authored bodies carry metadata as "Label Name: value" lines, e.g.
// "Date Reported:", "Sending Source:", "Callback Number:". Labels are
// restricted to letters, spaces, underscores and hyphens; a value runs until
// the next label line.
var fieldLabelPattern = regexp.MustCompile(`^\s*([A-Za-z _-]+):\s*(.*)$`)

// ExtractBodyFields extracts a map of lowercased-with-underscores field names
// to trimmed values from free-form body text. The grammar is deliberately
// permissive; when the same label appears more than once the last match wins.
// HTML-looking input is converted to text first.
func ExtractBodyFields(bodyText string) map[string]string {
	fields := make(map[string]string)
	if bodyText == "" {
		return fields
	}

	trimmed := strings.TrimSpace(bodyText)
	if strings.HasPrefix(trimmed, "<") && strings.Contains(trimmed, ">") {
		if converted := HTMLToText(bodyText); converted != "" {
			bodyText = converted
		}
	}

	var label string
	var value []string

	flush := func() {
		if label == "" {
			return
		}
		joined := strings.Join(strings.Fields(strings.Join(value, " ")), " ")
		if joined != "" {
			fields[label] = joined
		}
		label = ""
		value = nil
	}

	for _, line := range strings.Split(bodyText, "\n") {
		if m := fieldLabelPattern.FindStringSubmatch(line); m != nil {
			flush()
			label = strings.ReplaceAll(strings.ToLower(strings.TrimSpace(m[1])), " ", "_")
			value = []string{m[2]}
			continue
		}
		if label != "" {
			value = append(value, line)
		}
	}
	flush()

	return fields
}
