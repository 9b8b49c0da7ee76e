// Package match implements the cascading catalog matcher:
// exact code lookup, exact header lookup, then fuzzy ranking.
package match

import (
	"sort"

	"quotematch/internal"
	"quotematch/internal/catalog"
	"quotematch/internal/similarity"
	"quotematch/internal/textnorm"
)

const (
	codeConfidence    = 0.99
	headerConfidence  = 0.95
	codeTieScore      = 0.80
	headerTieScore    = 0.78
	invalidQtyCeiling = 0.7
	maxCandidates     = 5
	fallbackScanLimit = 1500
)

// Thresholds drive the fuzzy-stage decision. They are passed in
// explicitly so behavior is reproducible without environment
// coupling.
type Thresholds struct {
	OK     float64
	Review float64
	Gap    float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{OK: 0.90, Review: 0.72, Gap: 0.08}
}

// Query is one line to resolve. NameOrCode is empty when the parser
// produced no separate name; Normalized may be precomputed by the
// caller and is derived from RawLine otherwise.
type Query struct {
	RawLine    string
	NameOrCode string
	Qty        *float64
	Normalized string
}

// Matcher resolves queries against one immutable index snapshot.
// Construct a fresh Matcher per snapshot; instances are safe for
// concurrent use.
type Matcher struct {
	index *catalog.Index
	th    Thresholds
}

func New(index *catalog.Index, th Thresholds) *Matcher {
	return &Matcher{index: index, th: th}
}

// Match runs the cascade and never fails: a miss comes back as a
// NOT_FOUND or REVIEW result, an ambiguous exact hit as REVIEW with
// the tied candidates and no resolved product.
func (m *Matcher) Match(q Query) internal.MatchResult {
	normalized := q.Normalized
	if normalized == "" {
		normalized = textnorm.NormalizeHeader(q.RawLine)
	}

	codeSource := q.NameOrCode
	if codeSource == "" {
		codeSource = q.RawLine
	}

	if textnorm.LooksLikeCode(codeSource) {
		if code := textnorm.NormalizeCode(codeSource); code != "" {
			if res, done := m.byCode(code); done {
				return m.applyQtyRule(q, res)
			}
		}
	}

	if res, done := m.byHeader(normalized); done {
		return m.applyQtyRule(q, res)
	}

	return m.applyQtyRule(q, m.fuzzy(normalized))
}

func (m *Matcher) byCode(code string) (internal.MatchResult, bool) {
	hits := m.index.ByCode(code)
	switch {
	case len(hits) == 1:
		return internal.MatchResult{
			Status:     internal.StatusOK,
			Confidence: codeConfidence,
			Reason:     internal.ReasonCode,
			Product:    projectProduct(hits[0]),
			Candidates: fixedScoreCandidates(hits, codeConfidence),
		}, true
	case len(hits) > 1:
		return internal.MatchResult{
			Status:     internal.StatusReview,
			Confidence: codeTieScore,
			Reason:     internal.ReasonCode,
			Product:    nil,
			Candidates: fixedScoreCandidates(hits, codeTieScore),
		}, true
	}
	return internal.MatchResult{}, false
}

func (m *Matcher) byHeader(normalized string) (internal.MatchResult, bool) {
	hits := m.index.ByHeader(normalized)
	switch {
	case len(hits) == 1:
		return internal.MatchResult{
			Status:     internal.StatusOK,
			Confidence: headerConfidence,
			Reason:     internal.ReasonHeader,
			Product:    projectProduct(hits[0]),
			Candidates: fixedScoreCandidates(hits, headerConfidence),
		}, true
	case len(hits) > 1:
		return internal.MatchResult{
			Status:     internal.StatusReview,
			Confidence: headerTieScore,
			Reason:     internal.ReasonHeader,
			Product:    nil,
			Candidates: fixedScoreCandidates(hits, headerTieScore),
		}, true
	}
	return internal.MatchResult{}, false
}

func (m *Matcher) fuzzy(normalized string) internal.MatchResult {
	candidates := m.rank(normalized)
	if len(candidates) == 0 {
		return internal.MatchResult{
			Status:     internal.StatusNotFound,
			Confidence: 0,
			Reason:     internal.ReasonNone,
			Product:    nil,
			Candidates: []internal.MatchCandidate{},
		}
	}

	top := candidates[0]
	gap := top.Score
	if len(candidates) > 1 {
		gap = top.Score - candidates[1].Score
	}

	best, _ := m.index.Product(top.ID)
	switch {
	case top.Score >= m.th.OK && gap >= m.th.Gap:
		return internal.MatchResult{
			Status:     internal.StatusOK,
			Confidence: top.Score,
			Reason:     internal.ReasonFuzzy,
			Product:    projectProduct(best),
			Candidates: candidates,
		}
	case top.Score >= m.th.Review:
		return internal.MatchResult{
			Status:     internal.StatusReview,
			Confidence: top.Score,
			Reason:     internal.ReasonFuzzy,
			Product:    projectProduct(best),
			Candidates: candidates,
		}
	default:
		return internal.MatchResult{
			Status:     internal.StatusNotFound,
			Confidence: top.Score,
			Reason:     internal.ReasonNone,
			Product:    nil,
			Candidates: candidates,
		}
	}
}

func (m *Matcher) rank(query string) []internal.MatchCandidate {
	queryTokens := textnorm.Tokenize(query)

	ids := m.index.CandidateIDs(queryTokens)
	if len(ids) == 0 {
		ids = m.index.SampleIDs(fallbackScanLimit)
	}

	out := make([]internal.MatchCandidate, 0, len(ids))
	for _, id := range ids {
		p, ok := m.index.Product(id)
		if !ok {
			continue
		}
		header := m.index.NormalizedHeader(id)
		score := similarity.HeaderScore(query, header, queryTokens, textnorm.Tokenize(header))
		out = append(out, internal.MatchCandidate{ID: p.ID, SyncUID: p.SyncUID, Header: p.Header, Score: score})
	}

	// Ties break on ascending id to keep output byte-stable.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	if len(out) > maxCandidates {
		out = out[:maxCandidates]
	}
	return out
}

// A confident item match without a usable quantity is still not
// actionable, so OK results with missing or non-positive qty are
// downgraded for review. REVIEW and NOT_FOUND pass through as is.
func (m *Matcher) applyQtyRule(q Query, res internal.MatchResult) internal.MatchResult {
	if res.Status != internal.StatusOK {
		return res
	}
	if q.Qty != nil && *q.Qty > 0 {
		return res
	}
	res.Status = internal.StatusReview
	if res.Confidence > invalidQtyCeiling {
		res.Confidence = invalidQtyCeiling
	}
	return res
}

func projectProduct(p internal.ProductRecord) *internal.MatchedProduct {
	id := p.ID
	header := p.Header
	return &internal.MatchedProduct{
		ID:         &id,
		SyncUID:    p.SyncUID,
		Header:     &header,
		Articul:    p.Articul,
		UnitHeader: p.UnitHeader,
		FlatCodes:  p.FlatCodes,
	}
}

func fixedScoreCandidates(products []internal.ProductRecord, score float64) []internal.MatchCandidate {
	n := len(products)
	if n > maxCandidates {
		n = maxCandidates
	}
	out := make([]internal.MatchCandidate, 0, n)
	for _, p := range products[:n] {
		out = append(out, internal.MatchCandidate{ID: p.ID, SyncUID: p.SyncUID, Header: p.Header, Score: score})
	}
	return out
}
