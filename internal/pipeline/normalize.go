package pipeline

import (
	"quotematch/internal"
	"quotematch/internal/match"
	"quotematch/internal/textnorm"
)

// PreparedLine pairs an extracted line with its engine query. The
// normalized form is computed once here so index lookups and fuzzy
// scoring all see the same canonical string.
type PreparedLine struct {
	internal.LineItem
	Query match.Query
}

func PrepareLines(items []internal.LineItem) []PreparedLine {
	out := make([]PreparedLine, 0, len(items))
	for _, item := range items {
		source := item.RawLine
		nameOrCode := ""
		if item.NameOrCode != nil {
			source = *item.NameOrCode
			nameOrCode = *item.NameOrCode
		}
		out = append(out, PreparedLine{
			LineItem: item,
			Query: match.Query{
				RawLine:    item.RawLine,
				NameOrCode: nameOrCode,
				Qty:        item.Qty,
				Normalized: textnorm.NormalizeHeader(source),
			},
		})
	}
	return out
}
