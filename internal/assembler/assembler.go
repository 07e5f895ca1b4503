// Package assembler builds the prompt context block from conversation history
// and retrieved chunks. Output strings are Vietnamese because the corpus and
// the model prompts are.
package assembler

import (
	"fmt"
	"strings"

	"github.com/hoanvu/ragserve/internal/models"
)

// Section labels and role prefixes used in the assembled context.
const (
	historyLabel    = "LỊCH SỬ HỘI THOẠI:"
	referencesLabel = "THÔNG TIN THAM KHẢO:"
	userPrefix      = "Người dùng: "
	assistantPrefix = "Trợ lý: "
)

// BuildContext renders history and retrieved chunks into one context string.
// Either block is omitted when its input is empty; with both empty the result
// is "". Blocks are joined with a blank line. History keeps chronological
// order; chunks keep retrieval order and are numbered from 1, each followed by
// an indented source line naming the file and the 1-based passage number.
func BuildContext(history []models.Message, chunks []models.ScoredChunk) string {
	var blocks []string

	if len(history) > 0 {
		var b strings.Builder
		b.WriteString(historyLabel)
		for _, msg := range history {
			b.WriteString("\n")
			switch msg.Role {
			case models.RoleAssistant:
				b.WriteString(assistantPrefix)
			default:
				b.WriteString(userPrefix)
			}
			b.WriteString(msg.Content)
		}
		blocks = append(blocks, b.String())
	}

	if len(chunks) > 0 {
		var b strings.Builder
		b.WriteString(referencesLabel)
		for i, chunk := range chunks {
			b.WriteString(fmt.Sprintf("\n[%d] %s\n    (Nguồn: %s, đoạn %d)",
				i+1, chunk.Content, chunk.Filename, chunk.Ordinal+1))
		}
		blocks = append(blocks, b.String())
	}

	return strings.Join(blocks, "\n\n")
}
