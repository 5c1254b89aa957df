package domain

import "time"

// QuoteSummary is the slice of a quote the summarizer reads.
type QuoteSummary struct {
	ID          string    `json:"id"`
	QuoteNumber string    `json:"quote_number"`
	Status      string    `json:"status"`
	Subtotal    float64   `json:"subtotal"`
	CreatedAt   time.Time `json:"created_at"`
}

// InspectionSummary is the slice of an inspection report the summarizer reads.
type InspectionSummary struct {
	ID         string    `json:"id"`
	ClientName string    `json:"client_name"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}
