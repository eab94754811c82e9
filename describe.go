package xlbuild

import (
	"fmt"
	"slices"
	"strings"
)

// Describe returns a human-readable summary of the builder state: the
// active sheet, both offsets and every recorded key with its coordinate
// and range, sorted by row, column and key. Useful while developing a
// layout.
func (b *Builder) Describe() string {
	var sb strings.Builder
	sheet := b.sheet
	if sheet == "" {
		sheet = "<none>"
	}
	fmt.Fprintf(&sb, "Sheet: %s\n", sheet)
	fmt.Fprintf(&sb, "  row offset %d, column offset %d (%s)\n", b.rowOffset, b.colOffset, ColToName(b.colOffset))

	if len(b.coordinates) == 0 {
		return sb.String()
	}

	type entry struct {
		key string
		ref CellRef
	}
	entries := make([]entry, 0, len(b.coordinates))
	for key, coord := range b.coordinates {
		ref, _ := ParseCellRef(coord)
		entries = append(entries, entry{key: key, ref: ref})
	}
	slices.SortFunc(entries, func(x, y entry) int {
		if x.ref.Row != y.ref.Row {
			return x.ref.Row - y.ref.Row
		}
		if x.ref.Col != y.ref.Col {
			return x.ref.Col - y.ref.Col
		}
		return strings.Compare(x.key, y.key)
	})

	sb.WriteString("  Keys:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "    %-6s %-12s %q\n", b.coordinates[e.key], b.ranges[e.key], e.key)
	}
	return sb.String()
}
