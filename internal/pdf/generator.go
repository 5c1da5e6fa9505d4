package pdf

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/artmarket-contracts/internal/model"
)

const coreFont = "Helvetica"

type Generator struct {
	fontName string
	fontData []byte
}

// NewGenerator loads the TTF at fontPath for UTF-8 output. Without a font the core
// Helvetica font is used and text is transliterated to cp1252.
func NewGenerator(fontPath string) (*Generator, error) {
	if strings.TrimSpace(fontPath) == "" {
		return &Generator{fontName: coreFont}, nil
	}
	data, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("read font: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("font data is empty")
	}
	return &Generator{fontName: "DocumentSans", fontData: data}, nil
}

func (g *Generator) Generate(doc model.ContractDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 18, 18)
	pdf.AddPage()

	tr := func(s string) string { return s }
	if g.fontData != nil {
		pdf.AddUTF8FontFromBytes(g.fontName, "", g.fontData)
		pdf.AddUTF8FontFromBytes(g.fontName, "B", g.fontData)
	} else {
		tr = pdf.UnicodeTranslatorFromDescriptor("")
	}
	c := doc.Contract

	pdf.SetFont(g.fontName, "B", 16)
	pdf.CellFormat(0, 10, tr("Service Agreement"), "", 1, "C", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Contract #%d  |  Status: %s", c.ID, c.Status)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	partyBlock(pdf, g.fontName, tr, "Requester", doc.Requester)
	pdf.Ln(2)
	partyBlock(pdf, g.fontName, tr, "Counterparty", doc.Counterparty)
	pdf.Ln(4)

	section(pdf, g.fontName, tr, "Terms")
	fee, payout := c.Fee()
	widths := []float64{55, 119}
	drawTableRow(pdf, g.fontName, tr, []string{"Title", c.Title}, widths)
	drawTableRow(pdf, g.fontName, tr, []string{"Schedule", fmt.Sprintf("%s - %s", formatTime(c.StartAt), formatTime(c.EndAt))}, widths)
	drawTableRow(pdf, g.fontName, tr, []string{"Total amount", formatAmount(c.TotalAmount)}, widths)
	drawTableRow(pdf, g.fontName, tr, []string{"Platform fee", fmt.Sprintf("%s (%s%%)", formatAmount(fee), c.FeeRate.Shift(2).String())}, widths)
	drawTableRow(pdf, g.fontName, tr, []string{"Payout", formatAmount(payout)}, widths)
	pdf.Ln(2)
	pdf.SetFont(g.fontName, "", 10)
	pdf.MultiCell(0, 5, tr(safeValue(c.Description)), "", "L", false)
	pdf.Ln(4)

	section(pdf, g.fontName, tr, "Signatures")
	signatureBlock(pdf, g.fontName, tr, "Counterparty", c.CounterpartySignature)
	signatureBlock(pdf, g.fontName, tr, "Requester", c.RequesterSignature)

	if doc.OnchainStatus != "" {
		pdf.Ln(2)
		pdf.SetFont(g.fontName, "", 10)
		pdf.CellFormat(0, 6, tr(fmt.Sprintf("NFT certificate: %s", doc.OnchainStatus)), "", 1, "L", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetFont(g.fontName, "", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 5, tr(fmt.Sprintf("Generated %s UTC", doc.GeneratedAt.Format("2006-01-02 15:04"))), "", 1, "R", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func section(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, title string) {
	pdf.SetFont(fontName, "B", 12)
	pdf.CellFormat(0, 8, tr(title), "", 1, "L", false, 0, "")
}

func partyBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, title string, m model.Member) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, tr(title), "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	wallet := ""
	if m.WalletAddress != nil {
		wallet = *m.WalletAddress
	}
	lines := []string{
		fmt.Sprintf("Member: %s (#%d)", safeValue(m.Nickname), m.ID),
		fmt.Sprintf("Wallet: %s", safeValue(wallet)),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, tr(line), "", "L", false)
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, cols []string, widths []float64) {
	for i, col := range cols {
		style := ""
		if i == 0 {
			style = "B"
		}
		pdf.SetFont(fontName, style, 10)
		pdf.CellFormat(widths[i], 8, tr(col), "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
}

func signatureBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, label string, sig *string) {
	pdf.SetFont(fontName, "B", 10)
	pdf.CellFormat(0, 6, tr(label), "", 1, "L", false, 0, "")
	pdf.SetFont("Courier", "", 7)
	value := "not signed"
	if sig != nil {
		value = *sig
	}
	pdf.MultiCell(0, 4, value, "", "L", false)
	pdf.SetFont(fontName, "", 10)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatAmount(value int64) string {
	raw := fmt.Sprintf("%d", value)
	negative := strings.HasPrefix(raw, "-")
	raw = strings.TrimPrefix(raw, "-")
	var b strings.Builder
	for i, r := range raw {
		if i > 0 && (len(raw)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
