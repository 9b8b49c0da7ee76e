// Package internal holds the closed domain model shared across the
// matching pipeline. Upstream payloads may carry arbitrary extra
// fields; everything outside this model is retained only as an opaque
// raw blob and never inspected by matching logic.
package internal

// LineSource tags where an extracted request line came from.
type LineSource string

const (
	SourceEmailText  LineSource = "email_text"
	SourceEmailTable LineSource = "email_html_table"
	SourceXLSX       LineSource = "xlsx"
	SourcePDF        LineSource = "pdf"
)

// LineItem is one free-form request line pulled out of an email body
// or attachment. NameOrCode/Qty/Unit are best-effort parses and may
// be nil.
type LineItem struct {
	LineNo     int
	Source     LineSource
	RawLine    string
	NameOrCode *string
	Qty        *float64
	Unit       *string
	Meta       map[string]any
}

type MatchStatus string

type MatchReason string

const (
	StatusOK       MatchStatus = "OK"
	StatusReview   MatchStatus = "REVIEW"
	StatusNotFound MatchStatus = "NOT_FOUND"

	ReasonCode   MatchReason = "CODE"
	ReasonHeader MatchReason = "HEADER"
	ReasonFuzzy  MatchReason = "FUZZY"
	ReasonNone   MatchReason = "NONE"
)

// FlatCodes is the fixed family of alternate identifiers a catalog
// record may carry.
type FlatCodes struct {
	Elcom        *string `json:"elcom,omitempty"`
	Manufacturer *string `json:"manufacturer,omitempty"`
	Raec         *string `json:"raec,omitempty"`
	PC           *string `json:"pc,omitempty"`
	Etm          *string `json:"etm,omitempty"`
}

// ProductRecord is one catalog entity. ID is the identity; Header is
// guaranteed non-empty after trimming (records failing that are
// rejected at ingestion and never reach the index). RawJSON keeps the
// original payload for export and debugging only.
type ProductRecord struct {
	ID                 int
	SyncUID            *string
	Header             string
	Articul            *string
	UnitHeader         *string
	ManufacturerHeader *string
	MultiplicityOrder  *float64
	AnalogCodes        []string
	FlatCodes          FlatCodes
	UpdatedAt          *string
	RawJSON            string
}

type MatchCandidate struct {
	ID      int     `json:"id"`
	SyncUID *string `json:"syncUid"`
	Header  string  `json:"header"`
	Score   float64 `json:"score"`
}

// MatchedProduct is the projection of a resolved record that leaves
// the engine.
type MatchedProduct struct {
	ID         *int      `json:"id"`
	SyncUID    *string   `json:"syncUid"`
	Header     *string   `json:"header"`
	Articul    *string   `json:"articul"`
	UnitHeader *string   `json:"unitHeader"`
	FlatCodes  FlatCodes `json:"flatCodes"`
}

// MatchResult is the engine's verdict for one line. A miss is a
// normal value (StatusNotFound / StatusReview), never an error.
type MatchResult struct {
	Status     MatchStatus      `json:"status"`
	Confidence float64          `json:"confidence"`
	Reason     MatchReason      `json:"reason"`
	Product    *MatchedProduct  `json:"product"`
	Candidates []MatchCandidate `json:"candidates"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type InboundMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

// ExportRow is the flattened audit row rendered to XLSX: parse
// results, verdict, resolved product fields and the runner-up
// candidate for manual review.
type ExportRow struct {
	LineNo           int
	Source           string
	RawLine          string
	ParsedNameOrCode *string
	ParsedQty        *float64
	ParsedUnit       *string
	Status           string
	Confidence       float64
	Reason           string
	ProductID        *int
	ProductSyncUID   *string
	ProductHeader    *string
	ProductArticul   *string
	UnitHeader       *string
	CodeElcom        *string
	CodeManufacturer *string
	CodeRaec         *string
	CodePC           *string
	CodeEtm          *string
	RunnerUpHeader   *string
	RunnerUpScore    *float64
}
