package repository

import (
	"time"
)

// Receipt lifecycle states.
const (
	StatusUploaded    = "uploaded"
	StatusProcessing  = "processing"
	StatusSuccess     = "success"
	StatusNeedsReview = "needs_review"
	StatusFailed      = "failed"
)

// Processing stages recorded on runs and receipts.
const (
	StageOcr         = "ocr"
	StageLlmPrimary  = "llm_primary"
	StageLlmFallback = "llm_fallback"
	StageManual      = "manual"
)

// Receipt is the root row: one uploaded receipt image and its current
// position in the pipeline.
type Receipt struct {
	ID            string `gorm:"primaryKey;size:36"`
	UserID        string `gorm:"index;size:64"`
	ImageURL      string
	FileHash      string `gorm:"index;size:64"`
	CurrentStage  string `gorm:"size:32"`
	CurrentStatus string `gorm:"size:32"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProcessingRun is one per-stage record: which provider/model ran, what
// went in (truncated), what came out, and the validation outcome.
type ProcessingRun struct {
	ID               string `gorm:"primaryKey;size:36"`
	ReceiptID        string `gorm:"index;size:36"`
	Stage            string `gorm:"size:32"`
	ModelProvider    string `gorm:"size:64"`
	ModelName        string `gorm:"size:64"`
	Status           string `gorm:"size:32"` // pass | fail | needs_review
	ValidationStatus string `gorm:"size:32"`
	InputPayload     string
	OutputPayload    string
	ErrorMessage     string
	CreatedAt        time.Time
}

/*
ReceiptSummary is the denormalized header row. All money is unsigned cents;
the float-to-cents conversion (half-to-even) happens once, at this boundary.
TaxBreakdown keeps the labeled components as JSON ("[{HST,1400},...]") next
to the scalar TaxCents.
*/
type ReceiptSummary struct {
	ReceiptID     string `gorm:"primaryKey;size:36"`
	MerchantName  string
	StoreChainID  string `gorm:"size:64"`
	Address       string
	PurchaseDate  string `gorm:"size:16"`
	PurchaseTime  string `gorm:"size:16"`
	Currency      string `gorm:"size:8"`
	SubtotalCents *int64
	TaxCents      int64
	TaxBreakdown  string
	FeesCents     int64
	TotalCents    *int64
	PaymentMethod string `gorm:"size:32"`
	CardLast4     string `gorm:"size:8"`
	MembershipID  string `gorm:"size:32"`
	ItemCount     int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReceiptItem is one persisted line item, in cents.
type ReceiptItem struct {
	ID             uint   `gorm:"primaryKey"`
	ReceiptID      string `gorm:"index;size:36"`
	Position       int
	ProductName    string
	LineTotalCents int64
	Quantity       *float64
	UnitPriceCents *int64
	Unit           string `gorm:"size:8"`
	Sku            string `gorm:"size:16"`
	RawText        string
	OnSale         bool
	Confidence     float64
	CreatedAt      time.Time
}

// ProviderStatistics aggregates outcomes per model provider.
type ProviderStatistics struct {
	Provider     string `gorm:"primaryKey;size:64"`
	Passed       int64
	Failed       int64
	Errors       int64
	ManualReview int64
	UpdatedAt    time.Time
}
