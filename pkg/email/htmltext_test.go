package email

import (
	"strings"
	"testing"
)

func TestHTMLToTextBasic(t *testing.T) {
	html := `<html><body><p>Hello</p><p>World</p></body></html>`

	text := HTMLToText(html)
	if !strings.Contains(text, "Hello") || !strings.Contains(text, "World") {
		t.Errorf("text = %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Errorf("tags leaked into text: %q", text)
	}
}

func TestHTMLToTextTableFlattening(t *testing.T) {
	html := `<table>
<tr><td>Date Reported:</td><td>2025-11-12T19:54:38</td></tr>
<tr><td>Callback Number</td><td>(888) 111-1111</td></tr>
</table>`

	text := HTMLToText(html)

	if !strings.Contains(text, "Date Reported: 2025-11-12T19:54:38") {
		t.Errorf("missing flattened date row: %q", text)
	}
	if !strings.Contains(text, "Callback Number: (888) 111-1111") {
		t.Errorf("missing flattened callback row: %q", text)
	}

	// The flattened rows must survive field extraction.
	fields := ExtractBodyFields(text)
	if fields["callback_number"] != "(888) 111-1111" {
		t.Errorf("callback_number = %q", fields["callback_number"])
	}
}

func TestHTMLToTextRemovesScriptAndStyle(t *testing.T) {
	html := `<html><head><style>body { color: red; }</style></head>
<body><script>alert("x")</script><p>Visible</p></body></html>`

	text := HTMLToText(html)
	if strings.Contains(text, "alert") || strings.Contains(text, "color") {
		t.Errorf("script/style content leaked: %q", text)
	}
	if !strings.Contains(text, "Visible") {
		t.Errorf("body text lost: %q", text)
	}
}

func TestHTMLToTextLineBreaks(t *testing.T) {
	html := `First<br>Second<br/>Third`

	text := HTMLToText(html)
	for _, want := range []string{"First", "Second", "Third"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
	if strings.Contains(text, "FirstSecond") {
		t.Errorf("br not converted to newline: %q", text)
	}
}

func TestHTMLToTextEmpty(t *testing.T) {
	if got := HTMLToText(""); got != "" {
		t.Errorf("HTMLToText(\"\") = %q", got)
	}
}

func TestCleanHTMLPreservesContent(t *testing.T) {
	html := `<p>Account suspended, verify at <a href="https://evil.example.com">this link</a></p>`

	cleaned := CleanHTML(html)
	if !strings.Contains(cleaned, "https://evil.example.com") {
		t.Errorf("href lost: %q", cleaned)
	}
	if !strings.Contains(cleaned, "Account suspended") {
		t.Errorf("text lost: %q", cleaned)
	}
}

func TestCleanHTMLEmpty(t *testing.T) {
	if got := CleanHTML(""); got != "" {
		t.Errorf("CleanHTML(\"\") = %q", got)
	}
}
