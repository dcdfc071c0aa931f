package sources

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const fence = "```"

// RenderCaptureInstructions returns markdown telling a developer how to start
// capturing logs for a source: the primary command, any alternatives and a
// shell alias suggestion.
func (r *Registry) RenderCaptureInstructions(raw string) (string, error) {
	id, err := r.Resolve(raw)
	if err != nil {
		return "", err
	}
	d := r.byID[id]

	var b strings.Builder
	fmt.Fprintf(&b, "## Log Capture Setup for %s\n\n", capitalize(string(id)))
	fmt.Fprintf(&b, "**Description:** %s\n\n", d.Description)
	fmt.Fprintf(&b, "**Command:**\n%sbash\n%s\n%s\n", fence, d.CaptureCommand, fence)

	if len(d.AlternativeCommands) > 0 {
		b.WriteString("\n**Alternative commands:**\n")
		for _, cmd := range d.AlternativeCommands {
			fmt.Fprintf(&b, "%sbash\n%s\n%s\n", fence, cmd, fence)
		}
	}

	b.WriteString("\n**Tip:** You can also create a shell alias:\n")
	fmt.Fprintf(&b, "%sbash\nalias %sdev='%s'\n%s", fence, id, d.CaptureCommand, fence)

	return b.String(), nil
}

// capitalize upper-cases the first rune only: "nodejs" becomes "Nodejs".
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
