package api

import "entomo/internal/services/classifier"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// ClassifyRequest is the body of a classify call. Image is base64 encoded.
// When Predictions is empty the server asks its configured classifier.
type ClassifyRequest struct {
	Image       string                  `json:"image"`
	ImageName   string                  `json:"imageName,omitempty"`
	MIMEType    string                  `json:"mimeType,omitempty"`
	Predictions []classifier.Prediction `json:"predictions,omitempty"`
}

// Score is one primary output entry.
type Score struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
}

// Candidate is one entry offered to the secondary model.
type Candidate struct {
	ID         string  `json:"id"`
	Index      string  `json:"index"`
	Confidence float64 `json:"confidence"`
}

// Result is the transport form of a cascade result.
type Result struct {
	RequestID          string      `json:"requestId"`
	UsedSecondaryModel bool        `json:"usedSecondaryModel"`
	Threshold          float64     `json:"threshold"`
	TopIdentifier      string      `json:"topIdentifier"`
	TopConfidence      float64     `json:"topConfidence"`
	PrimaryTopK        []Score     `json:"primaryTopK"`
	Candidates         []Candidate `json:"candidates,omitempty"`
	SecondaryRawText   string      `json:"secondaryRawText,omitempty"`
	FinalIdentifier    string      `json:"finalIdentifier"`
	Fallback           bool        `json:"fallback"`
	FallbackReason     string      `json:"fallbackReason,omitempty"`
	CompletedAt        string      `json:"completedAt,omitempty"`
}

// ClassifyResponse wraps a result and any recovered secondary failure.
type ClassifyResponse struct {
	SessionID      string `json:"sessionId"`
	Result         Result `json:"result"`
	SecondaryError string `json:"secondaryError,omitempty"`
}

// ThresholdRequest changes session settings. Omitted fields are unchanged.
type ThresholdRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
	TopK      *int     `json:"topK,omitempty"`
}

// SessionResponse describes a session.
type SessionResponse struct {
	SessionID string  `json:"sessionId"`
	Threshold float64 `json:"threshold"`
	TopK      int     `json:"topK"`
	Last      *Result `json:"last,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
