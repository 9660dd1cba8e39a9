package cmdutils

import (
	"fmt"
	"io"
)

const logo = "🔧"

// PrintResponse writes an assistant reply with the product banner.
func PrintResponse(w io.Writer, text string) {
	if text == "" {
		return
	}

	fmt.Fprintf(w, "\n%s mcpconverse\n%s\n\n", logo, text)
}
