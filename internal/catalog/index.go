package catalog

import (
	"sort"

	"quotematch/internal"
	"quotematch/internal/textnorm"
)

// Index is a read-only lookup snapshot over one catalog version.
// It is immutable after BuildIndex returns and therefore safe for
// concurrent matching without locks; reflecting catalog changes
// means building a fresh Index and swapping the reference.
type Index struct {
	byID       map[int]internal.ProductRecord
	byCode     map[string][]internal.ProductRecord
	byHeader   map[string][]internal.ProductRecord
	tokenIDs   map[string]map[int]struct{}
	headerByID map[int]string
	ids        []int
}

// BuildIndex derives the lookup structures from a catalog snapshot.
// Records are expected to be pre-validated (non-empty header); a
// repeated id overwrites the earlier record. Cost is linear in total
// header length plus total code fields.
func BuildIndex(products []internal.ProductRecord) *Index {
	idx := &Index{
		byID:       make(map[int]internal.ProductRecord, len(products)),
		byCode:     map[string][]internal.ProductRecord{},
		byHeader:   map[string][]internal.ProductRecord{},
		tokenIDs:   map[string]map[int]struct{}{},
		headerByID: make(map[int]string, len(products)),
	}

	for _, p := range products {
		idx.byID[p.ID] = p

		header := textnorm.NormalizeHeader(p.Header)
		idx.headerByID[p.ID] = header
		idx.byHeader[header] = append(idx.byHeader[header], p)

		idx.addCode(p.Articul, p)
		idx.addCode(p.SyncUID, p)
		idx.addCode(p.FlatCodes.Elcom, p)
		idx.addCode(p.FlatCodes.Manufacturer, p)
		idx.addCode(p.FlatCodes.Raec, p)
		idx.addCode(p.FlatCodes.PC, p)
		idx.addCode(p.FlatCodes.Etm, p)
		for _, analog := range p.AnalogCodes {
			ac := analog
			idx.addCode(&ac, p)
		}

		for _, token := range textnorm.Tokenize(p.Header) {
			set, ok := idx.tokenIDs[token]
			if !ok {
				set = map[int]struct{}{}
				idx.tokenIDs[token] = set
			}
			set[p.ID] = struct{}{}
		}
	}

	idx.ids = make([]int, 0, len(idx.byID))
	for id := range idx.byID {
		idx.ids = append(idx.ids, id)
	}
	sort.Ints(idx.ids)

	return idx
}

func (x *Index) addCode(code *string, p internal.ProductRecord) {
	if code == nil {
		return
	}
	key := textnorm.NormalizeCode(*code)
	if key == "" {
		return
	}
	x.byCode[key] = append(x.byCode[key], p)
}

// Len reports the number of distinct product ids in the snapshot.
func (x *Index) Len() int {
	return len(x.ids)
}

// Product returns the record for id.
func (x *Index) Product(id int) (internal.ProductRecord, bool) {
	p, ok := x.byID[id]
	return p, ok
}

// ByCode returns every record filed under the normalized code key.
// The returned slice is shared and must not be mutated.
func (x *Index) ByCode(normalized string) []internal.ProductRecord {
	return x.byCode[normalized]
}

// ByHeader returns records whose normalized header equals the key,
// in catalog insertion order. The slice is shared and must not be
// mutated.
func (x *Index) ByHeader(normalized string) []internal.ProductRecord {
	return x.byHeader[normalized]
}

// NormalizedHeader returns the cached normalized header for id.
func (x *Index) NormalizedHeader(id int) string {
	return x.headerByID[id]
}

// CandidateIDs returns the union of product ids whose headers share
// at least one of the given tokens, sorted ascending so callers rank
// a stable candidate set.
func (x *Index) CandidateIDs(tokens []string) []int {
	union := map[int]struct{}{}
	for _, token := range tokens {
		for id := range x.tokenIDs[token] {
			union[id] = struct{}{}
		}
	}

	out := make([]int, 0, len(union))
	for id := range union {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// SampleIDs returns up to limit product ids in ascending id order.
// This is the bounded fallback scan for queries with no token
// overlap: on catalogs larger than the limit the sample is not
// guaranteed to contain the best match.
func (x *Index) SampleIDs(limit int) []int {
	if limit >= len(x.ids) {
		return x.ids
	}
	return x.ids[:limit]
}
