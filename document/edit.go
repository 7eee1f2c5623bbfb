package document

import (
	"sort"

	"github.com/parley-lsp/parley/protocol"
)

// ApplyChanges applies a set of LSP content change events to document text.
// Supports both full and incremental sync.
func ApplyChanges(text string, changes []protocol.TextDocumentContentChangeEvent) string {
	for _, change := range changes {
		if change.Range == nil {
			text = change.Text
		} else {
			start := OffsetAt(text, change.Range.Start)
			end := OffsetAt(text, change.Range.End)
			if start < 0 {
				start = 0
			}
			if end > len(text) {
				end = len(text)
			}
			if start > end {
				start = end
			}
			text = text[:start] + change.Text + text[end:]
		}
	}
	return text
}

// ApplyTextEdits applies a set of TextEdits to document text. Edits are
// applied back to front so earlier offsets stay valid; edits must not
// overlap.
func ApplyTextEdits(text string, edits []protocol.TextEdit) string {
	for _, edit := range sortEditsDescending(edits) {
		start := OffsetAt(text, edit.Range.Start)
		end := OffsetAt(text, edit.Range.End)
		if start < 0 {
			start = 0
		}
		if end > len(text) {
			end = len(text)
		}
		if start > end {
			start = end
		}
		text = text[:start] + edit.NewText + text[end:]
	}
	return text
}

// EditsToChanges converts TextEdits to incremental content change events,
// suitable for a didChange notification after a workspace edit is applied.
// The edits all address the original document, so the resulting changes are
// ordered back to front to survive sequential application.
func EditsToChanges(edits []protocol.TextEdit) []protocol.TextDocumentContentChangeEvent {
	sorted := sortEditsDescending(edits)
	changes := make([]protocol.TextDocumentContentChangeEvent, 0, len(sorted))
	for _, edit := range sorted {
		r := edit.Range
		changes = append(changes, protocol.TextDocumentContentChangeEvent{
			Range: &r,
			Text:  edit.NewText,
		})
	}
	return changes
}

func sortEditsDescending(edits []protocol.TextEdit) []protocol.TextEdit {
	sorted := make([]protocol.TextEdit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Range.Start, sorted[j].Range.Start
		if a.Line != b.Line {
			return a.Line > b.Line
		}
		return a.Character > b.Character
	})
	return sorted
}
