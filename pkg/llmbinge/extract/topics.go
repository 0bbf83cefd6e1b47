// Package extract pulls structured data out of free-form model output:
// topic lists from chain-of-thought text and map layouts from JSON that may
// be wrapped in prose or a code fence.
package extract

import (
	"regexp"
	"strings"
)

// DefaultTakeFromEnd is the number of trailing list items Topics keeps.
// Models reason first and answer last, so the final items are the answer.
const DefaultTakeFromEnd = 20

var (
	numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)
	bulletedLine = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
)

// Topics returns the list items found in text, top to bottom. Numbered lines
// ("1. x", "2) x") and bulleted lines ("- x", "* x", "• x") both count. When
// more than takeFromEnd items are found only the last takeFromEnd are
// returned. A takeFromEnd of zero or less means DefaultTakeFromEnd.
func Topics(text string, takeFromEnd int) []string {
	if takeFromEnd <= 0 {
		takeFromEnd = DefaultTakeFromEnd
	}
	items := matchLines(text, numberedLine, bulletedLine)
	if len(items) <= takeFromEnd {
		return items
	}
	return items[len(items)-takeFromEnd:]
}

// NumberedItems returns only the numbered list items in text.
func NumberedItems(text string) []string {
	return matchLines(text, numberedLine)
}

func matchLines(text string, patterns ...*regexp.Regexp) []string {
	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		for _, re := range patterns {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if item := strings.TrimSpace(m[1]); item != "" {
				items = append(items, item)
			}
			break
		}
	}
	return items
}
