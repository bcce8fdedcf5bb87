package openai

import (
	"fmt"
	"strings"
	"time"

	"github.com/suchitkumarchennuri/logiq/core"
)

const answerSystemPrompt = `You are Logiq, an assistant that explains application logs clearly and accurately.
Use only the provided logs as evidence. Respond with a concise answer that references the logs.
If the logs do not contain enough information to answer, say so instead of guessing.`

// formatRecord renders a single log record as one evidence line.
func formatRecord(record *core.LogRecord) string {
	return fmt.Sprintf("- [%s] %s %s: %s",
		record.Timestamp.UTC().Format(time.RFC3339),
		record.Service,
		record.Level,
		record.Message)
}

// buildUserPrompt assembles the question and the retrieved evidence into the
// prompt passed to the model. The caller has already bounded the record set
// to the context window.
func buildUserPrompt(question string, records []*core.LogRecord) string {
	var sb strings.Builder
	sb.WriteString("User question: ")
	sb.WriteString(question)

	if len(records) > 0 {
		sb.WriteString("\n\nRelevant logs:\n")
		for i, record := range records {
			if i > 0 {
				sb.WriteByte('\n')
			}
			sb.WriteString(formatRecord(record))
		}
	}

	return sb.String()
}
