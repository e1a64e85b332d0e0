package summary

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteMarkdown renders the report as a markdown document.
func (r *Report) WriteMarkdown(w io.Writer) error {
	bw := bufio.NewWriter(w)
	rule := strings.Repeat("-", 80)

	fmt.Fprintf(bw, "# Conversation Summaries and Usage Trends\n\n")
	fmt.Fprintf(bw, "Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "Conversations analyzed: %d\n", r.Conversations)
	fmt.Fprintf(bw, "Batches: %d\n\n", len(r.Batches))

	fmt.Fprintf(bw, "%s\n\n# Batch Summaries\n\n", separator)
	for i, b := range r.Batches {
		fmt.Fprintf(bw, "## Batch %d\n\n", i+1)
		bw.WriteString(b.Summary)
		fmt.Fprintf(bw, "\n\n%s\n\n", rule)
	}

	fmt.Fprintf(bw, "%s\n\n# Overall Trends and User Profile\n\n", separator)
	bw.WriteString(r.Trends)
	bw.WriteString("\n")

	return bw.Flush()
}
