package core

import (
	"bytes"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// TextDiff produces a line-based +/- diff between current and desired
// content. Used for multi-line string attributes (file contents) where
// an old/new pair is unreadable.
func TextDiff(current, desired string) string {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(current, desired)
	diffs := dmp.DiffMain(a, b, false)
	result := dmp.DiffCharsToLines(diffs, lines)

	var buf bytes.Buffer
	for _, diff := range result {
		prefix := "  "
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(diff.Text, "\n") {
			if line == "" {
				continue
			}
			buf.WriteString(prefix + line + "\n")
		}
	}
	return buf.String()
}
