package agent

import "fmt"

// maxToolOutputChars caps how much of a tool's output reaches the
// model. Oversized output keeps a head slice; the trailing notice fits
// inside the cap so the stored message never exceeds it.
const maxToolOutputChars = 30_000

func truncateToolOutput(output string) string {
	if len(output) <= maxToolOutputChars {
		return output
	}
	notice := fmt.Sprintf("\n[OUTPUT TRUNCATED: %d chars total. Use pagination or filtering to retrieve the rest.]",
		len(output))
	return output[:maxToolOutputChars-len(notice)] + notice
}
