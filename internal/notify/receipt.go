package notify

import (
	"context"       // Party lookups
	"fmt"           // Formatting
	"os"            // Directory creation
	"path/filepath" // Receipt paths

	"wallet_service/internal/domain" // Transaction records

	"github.com/go-pdf/fpdf" // PDF rendering
)

// renderReceipt writes a PDF receipt for the record and returns its path
// relative to the receipt directory. The filename is keyed by transaction id
// so reprocessing the same event can never create a duplicate.
func (d *Dispatcher) renderReceipt(ctx context.Context, record *domain.Transaction) (string, error) {
	if err := os.MkdirAll(d.receiptDir, 0o755); err != nil {
		return "", err
	}
	filename := fmt.Sprintf("receipt_%d.pdf", record.ID)
	fullPath := filepath.Join(d.receiptDir, filename)

	sender := "System"
	if record.FromWalletID != nil {
		name, err := d.ownerName(ctx, *record.FromWalletID)
		if err != nil {
			return "", err
		}
		sender = name
	}
	receiver := ""
	if record.ToWalletID != nil {
		name, err := d.ownerName(ctx, *record.ToWalletID)
		if err != nil {
			return "", err
		}
		receiver = name
	}

	if err := writeReceiptPDF(fullPath, record, sender, receiver); err != nil {
		return "", err
	}
	return filename, nil
}

// ownerName resolves a wallet id to its owner's username.
func (d *Dispatcher) ownerName(ctx context.Context, walletID uint) (string, error) {
	var row struct {
		Username string
	}
	err := d.db.WithContext(ctx).Table("wallets").
		Select("users.username AS username").
		Joins("JOIN users ON users.id = wallets.user_id").
		Where("wallets.id = ?", walletID).
		Scan(&row).Error
	return row.Username, err
}

// writeReceiptPDF lays out the receipt document.
func writeReceiptPDF(path string, record *domain.Transaction, sender, receiver string) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 24)
	pdf.CellFormat(0, 14, "Transaction Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)
	pdf.SetLineWidth(0.7)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(10)

	rows := [][2]string{
		{"Transaction ID:", fmt.Sprintf("%d", record.ID)},
		{"Date & Time:", record.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		{"From:", sender},
		{"To:", receiver},
		{"Amount:", "$" + record.Amount.StringFixed(2)},
	}
	for _, row := range rows {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(50, 10, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 12)
		pdf.CellFormat(0, 10, row[1], "", 1, "L", false, 0, "")
	}

	pdf.Ln(16)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 8, "This is an automatically generated receipt. Please keep for your records.", "", 1, "C", false, 0, "")

	return pdf.OutputFileAndClose(path)
}
