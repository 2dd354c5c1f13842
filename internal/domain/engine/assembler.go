package engine

import (
	"sort"

	"github.com/0xcro3dile/writecheck-go/internal/domain/entities"
)

// DefaultLimit is the page size used when the caller gives none.
const DefaultLimit = 20

// Defaults are the paging fallbacks applied by NormalizeWindow.
type Defaults struct {
	Limit    int // Page size for a missing or negative limit
	MaxLimit int // Upper bound on limit; zero means unbounded
}

// Window is a normalized offset/limit pair.
type Window struct {
	Offset int
	Limit  int
}

// NormalizeWindow maps negative inputs to defaults (offset 0, limit d.Limit)
// and clamps the limit to d.MaxLimit. A zero limit is kept.
func NormalizeWindow(offset, limit int, d Defaults) Window {
	if d.Limit <= 0 {
		d.Limit = DefaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = d.Limit
	}
	if d.MaxLimit > 0 && limit > d.MaxLimit {
		limit = d.MaxLimit
	}
	return Window{Offset: offset, Limit: limit}
}

// locateParagraph returns the index of the greatest paragraph start <= pos.
func locateParagraph(starts []int, pos int) int {
	i := sort.SearchInts(starts, pos+1) - 1
	if i < 0 {
		return 0
	}
	return i
}

// Assemble merges pattern and heuristic matches into one sorted page.
// Heuristic matches are placed into paragraphs by start offset. The sort is
// stable on (Start, End), so identical inputs always page identically.
func Assemble(pattern, heuristic []entities.Match, paragraphStarts []int, w Window, chunkHasMore bool) entities.Page {
	combined := make([]entities.Match, 0, len(pattern)+len(heuristic))
	combined = append(combined, pattern...)
	for _, m := range heuristic {
		if len(paragraphStarts) > 0 {
			pi := locateParagraph(paragraphStarts, m.Start)
			m.ParagraphIndex = pi
			m.StartInParagraph = m.Start - paragraphStarts[pi]
			m.EndInParagraph = m.End - paragraphStarts[pi]
		} else {
			m.StartInParagraph = m.Start
			m.EndInParagraph = m.End
		}
		combined = append(combined, m)
	}

	sort.SliceStable(combined, func(i, j int) bool {
		if combined[i].Start != combined[j].Start {
			return combined[i].Start < combined[j].Start
		}
		return combined[i].End < combined[j].End
	})

	total := len(combined)
	lo := clamp(w.Offset, 0, total)
	// Offset and limit come from clients and may be near MaxInt; never add them.
	hi := lo + clamp(w.Limit, 0, total-lo)

	return entities.Page{
		Matches:      append([]entities.Match{}, combined[lo:hi]...),
		Total:        total,
		Offset:       w.Offset,
		Limit:        w.Limit,
		HasMore:      w.Offset < total && w.Limit < total-w.Offset,
		ChunkHasMore: chunkHasMore,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
