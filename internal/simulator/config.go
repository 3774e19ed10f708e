// Package simulator drives a running tipjar service with concurrent tips and
// reviews and checks the aggregates it reports against locally kept expectations.
package simulator

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL         string        // Base URL of the service
	Owners          int           // Businesses to register
	WorkersPerOwner int           // Workers on each roster
	Tips            int           // Tips to submit in total
	ReviewRatio     float64       // Fraction of tips that get rated, 0..1
	Concurrency     int           // Concurrent HTTP clients
	Timeout         time.Duration // HTTP request timeout
	OutputFile      string        // Where to write the generated plan; empty skips it
	Verbose         bool          // Enable verbose logging
}

// Business is a seeded owner and the workers on its roster.
type Business struct {
	OwnerID   string   `json:"owner_id"`
	Email     string   `json:"email"`
	WorkerIDs []string `json:"worker_ids"`
}

// PlannedTip is one tip the simulator will submit and maybe rate.
type PlannedTip struct {
	WorkerID     string          `json:"worker_id"`
	Amount       decimal.Decimal `json:"amount"`
	CustomerName string          `json:"customer_name"`
	PaymentRef   string          `json:"payment_ref"`
	Rating       *int            `json:"rating,omitempty"`
	Review       string          `json:"review,omitempty"`
	// ByTip rates through POST /tips/{id}/review instead of the worker route.
	ByTip bool `json:"by_tip,omitempty"`

	// filled in after submission
	TipID    string `json:"tip_id,omitempty"`
	Recorded bool   `json:"recorded"`
	Rated    bool   `json:"rated"`
}

// Stats holds run statistics.
type Stats struct {
	TipsPlanned     int
	TipsRecorded    int
	TipsFailed      int
	ReviewsPlanned  int
	ReviewsAccepted int
	ReviewsFailed   int
	Published       int
	Mismatches      int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
