package gifting

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "github.com/tursodatabase/libsql-client-go/libsql"

	"github.com/tushevents/gifting-tools/gifting/internal/sqlite/receipts"
)

// Receipt is the local record of a confirmed contribution. The ledger exists
// for the guest's own reference and as the at-most-once guard on the
// optimistic catalog patch; the remote service stays authoritative.
type Receipt struct {
	TransactionNo string `json:"transactionNo"`
	GiftID        string `json:"giftId"`
	GiftTitle     string `json:"giftTitle"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	AmountMinor   int64  `json:"amount"`
	CreatedAt     time.Time
}

type ReceiptStore interface {
	SaveReceipt(context.Context, Receipt) error
	ReceiptByTransaction(context.Context, string) (Receipt, bool, error)
	ListReceipts(context.Context) ([]Receipt, error)
}

type defaultReceiptStore struct {
	queries *receipts.Queries
}

func (d defaultReceiptStore) SaveReceipt(ctx context.Context, r Receipt) error {
	_, err := d.queries.SaveGiftReceipt(ctx, receipts.SaveGiftReceiptParams{
		TransactionNo: r.TransactionNo,
		GiftID:        sql.NullString{String: r.GiftID, Valid: true},
		GiftTitle:     sql.NullString{String: r.GiftTitle, Valid: true},
		Name:          sql.NullString{String: r.Name, Valid: true},
		Email:         sql.NullString{String: r.Email, Valid: true},
		AmountMinor:   sql.NullInt64{Int64: r.AmountMinor, Valid: true},
		CreatedAt:     sql.NullTime{Time: r.CreatedAt, Valid: true},
	})
	if err != nil {
		return fmt.Errorf("encountered an error persisting a gift receipt: %s", err)
	}

	return nil
}

func (d defaultReceiptStore) ReceiptByTransaction(ctx context.Context, transactionNo string) (Receipt, bool, error) {
	raw, err := d.queries.GetGiftReceiptByTransaction(ctx, transactionNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Receipt{}, false, nil
		}
		return Receipt{}, false, fmt.Errorf("encountered an error fetching a gift receipt: %s", err)
	}

	return asReceipt(raw), true, nil
}

func (d defaultReceiptStore) ListReceipts(ctx context.Context) ([]Receipt, error) {
	var out []Receipt

	raw, err := d.queries.ListGiftReceipts(ctx)
	if err != nil {
		return out, fmt.Errorf("encountered an error listing gift receipts: %s", err)
	}

	for _, r := range raw {
		out = append(out, asReceipt(r))
	}

	return out, nil
}

func asReceipt(r receipts.GiftReceipt) Receipt {
	return Receipt{
		TransactionNo: r.TransactionNo,
		GiftID:        r.GiftID.String,
		GiftTitle:     r.GiftTitle.String,
		Name:          r.Name.String,
		Email:         r.Email.String,
		AmountMinor:   r.AmountMinor.Int64,
		CreatedAt:     r.CreatedAt.Time,
	}
}

const receiptSchema = `
CREATE TABLE IF NOT EXISTS gift_receipts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	transaction_no TEXT NOT NULL UNIQUE,
	gift_id TEXT,
	gift_title TEXT,
	name TEXT,
	email TEXT,
	amount_minor INTEGER,
	created_at TIMESTAMP
);`

// NewReceiptStore opens the ledger named by DATABASE_URL: a libsql:// URL for
// a hosted database or a file: URL for a local sqlite file. An empty value
// falls back to a sqlite file in the working directory.
func NewReceiptStore() (ReceiptStore, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = "file:gifting.db"
	}

	var driver string

	switch {
	case strings.HasPrefix(databaseURL, "libsql://"):
		driver = "libsql"
	case strings.HasPrefix(databaseURL, "file:"):
		driver = "sqlite3"
	default:
		return nil, fmt.Errorf("unsupported DATABASE_URL: %s", databaseURL)
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("encountered an error connecting to the database: %s", err)
	}

	if _, err := db.Exec(receiptSchema); err != nil {
		return nil, fmt.Errorf("encountered an error preparing the receipts table: %s", err)
	}

	return defaultReceiptStore{receipts.New(db)}, nil
}
