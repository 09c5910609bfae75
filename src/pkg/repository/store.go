package repository

import (
	"encoding/json"
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	tl "github.com/tuumbleweed/tintlog/logger"
	"github.com/tuumbleweed/tintlog/palette"
	"github.com/tuumbleweed/xerr"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ledgerlens/src/pkg/money"
	"ledgerlens/src/pkg/parsers"
)

// MaxPayloadBytes truncates run payloads before persistence; full payloads
// for failed runs live in the on-disk debug bundle, not the database.
const MaxPayloadBytes = 16000

/*
Store is the typed write surface over the relational database. It is the
exclusive writer to persisted receipt state; the pipeline never touches
gorm directly.
*/
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the sqlite database and migrates the schema.
// Use ":memory:" in tests.
func NewStore(databasePath string) (store *Store, e *xerr.Error) {
	db, openErr := gorm.Open(sqlite.Open(databasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, xerr.NewError(openErr, "open sqlite database", databasePath)
	}

	migrateErr := db.AutoMigrate(
		&Receipt{}, &ProcessingRun{}, &ReceiptSummary{}, &ReceiptItem{}, &ProviderStatistics{},
	)
	if migrateErr != nil {
		return nil, xerr.NewError(migrateErr, "migrate repository schema", databasePath)
	}

	tl.Log(tl.Info, palette.Green, "Repository %s at '%s'", "opened", databasePath)
	return &Store{db: db}, nil
}

// CreateReceipt registers a fresh upload in the `uploaded` state.
func (s *Store) CreateReceipt(userID string, imageURL string, fileHash string) (receiptID string, e *xerr.Error) {
	receipt := Receipt{
		ID:            uuid.NewString(),
		UserID:        userID,
		ImageURL:      imageURL,
		FileHash:      fileHash,
		CurrentStage:  StageOcr,
		CurrentStatus: StatusUploaded,
	}
	if err := s.db.Create(&receipt).Error; err != nil {
		return "", xerr.NewError(err, "create receipt row", userID)
	}
	return receipt.ID, nil
}

// UpdateReceiptState advances the receipt's current stage and status.
func (s *Store) UpdateReceiptState(receiptID string, stage string, status string) (e *xerr.Error) {
	result := s.db.Model(&Receipt{}).
		Where("id = ?", receiptID).
		Updates(map[string]any{"current_stage": stage, "current_status": status})
	if result.Error != nil {
		return xerr.NewError(result.Error, "update receipt state", receiptID)
	}
	if result.RowsAffected == 0 {
		return xerr.NewError(fmt.Errorf("no such receipt"), "update receipt state", receiptID)
	}
	return nil
}

// SaveProcessingRun appends one per-stage record. Payloads are truncated to
// MaxPayloadBytes.
func (s *Store) SaveProcessingRun(receiptID string, stage string, provider string, model string, status string, validationStatus string, inputPayload string, outputPayload string, errorMessage string) (runID string, e *xerr.Error) {
	run := ProcessingRun{
		ID:               uuid.NewString(),
		ReceiptID:        receiptID,
		Stage:            stage,
		ModelProvider:    provider,
		ModelName:        model,
		Status:           status,
		ValidationStatus: validationStatus,
		InputPayload:     truncatePayload(inputPayload),
		OutputPayload:    truncatePayload(outputPayload),
		ErrorMessage:     errorMessage,
	}
	if err := s.db.Create(&run).Error; err != nil {
		return "", xerr.NewError(err, "save processing run", receiptID)
	}
	return run.ID, nil
}

/*
CommitResult persists the terminal outcome of a run as one transactional
unit: the summary, every item, the final processing run, and the receipt
state update. All-or-nothing, so a crash can never leave a summary without
its items.
*/
func (s *Store) CommitResult(receiptID string, candidate *parsers.ParsedReceipt, finalRun ProcessingRun, stage string, status string) (e *xerr.Error) {
	summary := summaryFromCandidate(receiptID, candidate)
	items := itemsFromCandidate(receiptID, candidate)

	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&summary).Error; err != nil {
			return err
		}
		if err := tx.Where("receipt_id = ?", receiptID).Delete(&ReceiptItem{}).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		finalRun.ID = uuid.NewString()
		finalRun.ReceiptID = receiptID
		finalRun.InputPayload = truncatePayload(finalRun.InputPayload)
		finalRun.OutputPayload = truncatePayload(finalRun.OutputPayload)
		if err := tx.Create(&finalRun).Error; err != nil {
			return err
		}
		return tx.Model(&Receipt{}).
			Where("id = ?", receiptID).
			Updates(map[string]any{"current_stage": stage, "current_status": status}).Error
	})
	if txErr != nil {
		return xerr.NewError(txErr, "commit receipt result transaction", receiptID)
	}

	tl.Log(
		tl.Notice1, palette.GreenBold, "%s receipt '%s': summary plus '%s' items",
		"Committed", receiptID, fmt.Sprintf("%d", len(items)),
	)
	return nil
}

// UpdateStatistics bumps the per-provider outcome counters.
func (s *Store) UpdateStatistics(provider string, passed bool, isError bool, isManualReview bool) (e *xerr.Error) {
	stats := ProviderStatistics{Provider: provider}
	txErr := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.FirstOrCreate(&stats, ProviderStatistics{Provider: provider}).Error; err != nil {
			return err
		}
		switch {
		case passed:
			stats.Passed++
		case isManualReview:
			stats.ManualReview++
		case isError:
			stats.Errors++
		default:
			stats.Failed++
		}
		return tx.Save(&stats).Error
	})
	if txErr != nil {
		return xerr.NewError(txErr, "update provider statistics", provider)
	}
	return nil
}

// GetReceipt loads a receipt row, for tests and the HTTP surface.
func (s *Store) GetReceipt(receiptID string) (receipt Receipt, e *xerr.Error) {
	if err := s.db.First(&receipt, "id = ?", receiptID).Error; err != nil {
		return receipt, xerr.NewError(err, "load receipt row", receiptID)
	}
	return receipt, nil
}

// GetSummary loads the persisted summary for a receipt.
func (s *Store) GetSummary(receiptID string) (summary ReceiptSummary, e *xerr.Error) {
	if err := s.db.First(&summary, "receipt_id = ?", receiptID).Error; err != nil {
		return summary, xerr.NewError(err, "load receipt summary", receiptID)
	}
	return summary, nil
}

// GetItems loads the persisted items for a receipt, in position order.
func (s *Store) GetItems(receiptID string) (items []ReceiptItem, e *xerr.Error) {
	if err := s.db.Where("receipt_id = ?", receiptID).Order("position asc").Find(&items).Error; err != nil {
		return nil, xerr.NewError(err, "load receipt items", receiptID)
	}
	return items, nil
}

// GetStatistics loads the counters for one provider.
func (s *Store) GetStatistics(provider string) (stats ProviderStatistics, e *xerr.Error) {
	if err := s.db.First(&stats, "provider = ?", provider).Error; err != nil {
		return stats, xerr.NewError(err, "load provider statistics", provider)
	}
	return stats, nil
}

func truncatePayload(payload string) string {
	if len(payload) <= MaxPayloadBytes {
		return payload
	}
	return payload[:MaxPayloadBytes]
}

// summaryFromCandidate converts the float candidate into the cent-exact
// summary row. The scalar TaxCents is the component sum; the labeled list
// survives as JSON.
func summaryFromCandidate(receiptID string, candidate *parsers.ParsedReceipt) ReceiptSummary {
	summary := ReceiptSummary{
		ReceiptID:     receiptID,
		MerchantName:  candidate.MerchantName,
		StoreChainID:  candidate.StoreChainID,
		Address:       candidate.Address,
		PurchaseDate:  candidate.PurchaseDate,
		PurchaseTime:  candidate.PurchaseTime,
		Currency:      candidate.Currency,
		TaxCents:      int64(money.FromFloat(candidate.TaxSum())),
		FeesCents:     int64(money.FromFloat(candidate.FeeSum())),
		PaymentMethod: candidate.PaymentMethod,
		CardLast4:     candidate.CardLast4,
		MembershipID:  candidate.MembershipID,
		ItemCount:     len(candidate.Items),
	}
	if candidate.Subtotal != nil {
		cents := int64(money.FromFloat(*candidate.Subtotal))
		summary.SubtotalCents = &cents
	}
	if candidate.Total != nil {
		cents := int64(money.FromFloat(*candidate.Total))
		summary.TotalCents = &cents
	}
	if len(candidate.Taxes) > 0 {
		if encoded, err := json.Marshal(candidate.Taxes); err == nil {
			summary.TaxBreakdown = string(encoded)
		}
	}
	return summary
}

func itemsFromCandidate(receiptID string, candidate *parsers.ParsedReceipt) []ReceiptItem {
	items := make([]ReceiptItem, 0, len(candidate.Items))
	for position, item := range candidate.Items {
		row := ReceiptItem{
			ReceiptID:      receiptID,
			Position:       position,
			ProductName:    item.ProductName,
			LineTotalCents: int64(money.FromFloat(item.LineTotal)),
			Quantity:       item.Quantity,
			Unit:           item.Unit,
			Sku:            item.Sku,
			RawText:        item.RawText,
			OnSale:         item.OnSale,
			Confidence:     item.Confidence,
		}
		if item.UnitPrice != nil {
			cents := int64(money.FromFloat(*item.UnitPrice))
			row.UnitPriceCents = &cents
		}
		items = append(items, row)
	}
	return items
}
