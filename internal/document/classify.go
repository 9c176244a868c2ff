package document

import "strings"

// Type is the document type inferred from the filename.
type Type string

const (
	TypeInvoice     Type = "Rechnung"
	TypeReceipt     Type = "Beleg"
	TypeReceiptSlip Type = "Quittung"
	TypeOther       Type = "Sonstiges"
)

// Classify infers the type from case-insensitive filename keywords.
// Earlier rules win: "rechnung_beleg.pdf" is an invoice.
func Classify(filename string) Type {
	name := strings.ToLower(filename)
	switch {
	case strings.Contains(name, "rechnung"), strings.Contains(name, "invoice"):
		return TypeInvoice
	case strings.Contains(name, "beleg"):
		return TypeReceipt
	case strings.Contains(name, "quittung"):
		return TypeReceiptSlip
	default:
		return TypeOther
	}
}
