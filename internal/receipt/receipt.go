// Package receipt формирует PDF-документы: квитанции об оплате воды и счета.
package receipt

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/mmeshcher/aquabill/internal/billing"
	"github.com/mmeshcher/aquabill/internal/model"
)

// Company содержит реквизиты компании для шапки документа.
type Company struct {
	Name    string
	Address string
	Contact string
}

const (
	pageLeft  = 20.0
	pageRight = 190.0
	col1Value = 100.0
	col2Label = 110.0
)

type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func newDocument() *document {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageLeft, 15, 210-pageRight)
	pdf.AddPage()
	return &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
}

func (d *document) font(style string, size float64) {
	d.pdf.SetFont("Helvetica", style, size)
}

// text печатает строку с выравниванием относительно x: "L" слева направо, "R" до x, "C" по центру.
func (d *document) text(x, y float64, s, align string) {
	s = d.tr(s)
	w := d.pdf.GetStringWidth(s)
	switch align {
	case "R":
		x -= w
	case "C":
		x -= w / 2
	}
	d.pdf.Text(x, y, s)
}

func (d *document) header(c Company, now time.Time) {
	d.pdf.SetTextColor(0, 0, 0)
	d.font("B", 14)
	d.text(40, 20, c.Name, "L")

	d.font("", 10)
	d.pdf.SetTextColor(100, 100, 100)
	y := 25.0
	for _, line := range splitAddress(c.Address) {
		d.text(40, y, line, "L")
		y += 5
	}
	d.text(40, y, c.Contact, "L")

	d.pdf.SetTextColor(0, 0, 0)
	d.font("B", 10)
	d.text(160, 20, "Fecha:", "R")
	d.text(160, 28, "Hora:", "R")
	d.font("", 10)
	d.text(pageRight, 20, now.Format("02/01/2006"), "R")
	d.text(pageRight, 28, now.Format("03:04:05 PM"), "R")
}

// splitAddress разбивает адрес на две строки по последней запятой.
func splitAddress(addr string) []string {
	i := strings.LastIndex(addr, ",")
	if i < 0 {
		return []string{addr}
	}
	return []string{strings.TrimSpace(addr[:i+1]), strings.TrimSpace(addr[i+1:])}
}

func (d *document) field(labelX, valueX, y float64, label, value string) {
	d.font("B", 9)
	d.text(labelX, y, label, "L")
	d.font("", 9)
	d.text(valueX, y, value, "R")
}

func (d *document) rule(y float64, gray int) {
	d.pdf.SetDrawColor(gray, gray, gray)
	d.pdf.Line(pageLeft, y, pageRight, y)
}

func (d *document) output(w io.Writer) error {
	if err := d.pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

// RenderPayment печатает подтверждение оплаты квитанции за воду.
func RenderPayment(w io.Writer, p model.Payment, company Company, now time.Time) error {
	d := newDocument()
	d.header(company, now)

	periodLabel := p.Period
	if t, err := billing.ParsePeriod(p.Period); err == nil {
		periodLabel = billing.MonthLabel(t)
	}
	amount := billing.FormatAmount(p.AmountCents)

	d.font("B", 18)
	d.text(105, 55, "Comprobante de Pago", "C")

	d.font("B", 12)
	d.text(pageLeft, 70, "Información", "L")
	d.rule(72, 200)

	const startY, lineHeight = 80.0, 8.0

	d.field(pageLeft, col1Value, startY, "Id Transacción:", p.TransactionID)
	d.field(col2Label, pageRight, startY, "Número Tarjeta:", "############"+p.CardLast4)

	d.field(pageLeft, col1Value, startY+lineHeight*2, "Código Cliente:", p.AccountNumber)
	d.field(col2Label, pageRight, startY+lineHeight*2, "Tipo Tarjeta:", "Crédito/Débito")

	d.field(pageLeft, col1Value, startY+lineHeight*3, "Nombre:", p.CardHolder)
	d.field(col2Label, pageRight, startY+lineHeight*3, "Marca Tarjeta:", "N/A")

	d.field(pageLeft, col1Value, startY+lineHeight*4, "Forma de Pago:", "Pago Electrónico")
	d.field(col2Label, pageRight, startY+lineHeight*4, "Banco:", "POS "+company.Name)

	row5Y := startY + lineHeight*6
	paidAt := p.PaidAt.In(now.Location())
	d.field(pageLeft, col1Value, row5Y, "Fecha:", billing.CutoffDate(paidAt)+" "+paidAt.Format("03:04:05 PM"))
	d.field(col2Label, pageRight, row5Y, "Número Autorización:", p.AuthorizationCode)

	row6Y := row5Y + lineHeight*2
	d.field(pageLeft, col1Value, row6Y, "Monto Total:", amount)
	d.field(col2Label, pageRight, row6Y, "Referencia:", strings.ReplaceAll(periodLabel, " ", "-"))

	tableY := row6Y + 20
	d.rule(tableY, 220)
	d.font("B", 9)
	d.text(pageLeft, tableY+6, "Descripción", "L")
	d.text(140, tableY+6, "Cantidad", "C")
	d.text(pageRight, tableY+6, "Precio", "R")
	d.rule(tableY+10, 220)

	contentY := tableY + 18
	d.font("", 9)
	d.text(pageLeft, contentY, "Pago de recibo de agua - "+periodLabel, "L")
	d.text(140, contentY, "1", "C")
	d.text(pageRight, contentY, amount, "R")

	d.font("B", 9)
	d.text(140, contentY+17, "Total a Pagar", "C")
	d.text(pageRight, contentY+17, amount, "R")

	return d.output(w)
}

// RenderInvoice печатает счёт с позициями, итогом, статусом и юридическим текстом.
func RenderInvoice(w io.Writer, inv model.Invoice, company Company, now time.Time) error {
	d := newDocument()
	d.header(company, now)

	d.font("B", 18)
	d.text(105, 55, "Factura "+inv.Number, "C")

	const labelX, valueX = pageLeft, col1Value
	y := 70.0
	for _, f := range [][2]string{
		{"Cliente:", inv.CustomerName},
		{"Email:", inv.CustomerEmail},
		{"Fecha:", inv.InvoiceDate.Format("02/01/2006")},
		{"Vencimiento:", inv.DueDate.Format("02/01/2006")},
		{"Estado:", billing.StatusLabel(inv.Status)},
	} {
		d.field(labelX, valueX, y, f[0], f[1])
		y += 6
	}

	y += 6
	d.rule(y, 220)
	d.font("B", 9)
	d.text(pageLeft, y+6, "Descripción", "L")
	d.text(120, y+6, "Cantidad", "C")
	d.text(155, y+6, "Precio", "R")
	d.text(pageRight, y+6, "Importe", "R")
	d.rule(y+10, 220)

	y += 18
	d.font("", 9)
	for _, it := range inv.Items {
		if y > 260 {
			d.pdf.AddPage()
			y = 20
		}
		d.text(pageLeft, y, it.Description, "L")
		d.text(120, y, fmt.Sprintf("%d", it.Quantity), "C")
		d.text(155, y, billing.FormatAmount(it.PriceCents), "R")
		d.text(pageRight, y, billing.FormatAmount(billing.LineTotal(it)), "R")
		y += 7
	}

	d.font("B", 10)
	d.text(155, y+6, "Total", "R")
	d.text(pageRight, y+6, billing.FormatAmount(inv.TotalCents), "R")
	y += 16

	if inv.Notes != "" {
		d.font("", 9)
		d.pdf.SetXY(pageLeft, y)
		d.pdf.MultiCell(pageRight-pageLeft, 5, d.tr(inv.Notes), "", "L", false)
		y = d.pdf.GetY() + 4
	}

	if inv.CompliantText != "" {
		d.font("", 8)
		d.pdf.SetXY(pageLeft, y)
		d.pdf.MultiCell(pageRight-pageLeft, 4, d.tr(inv.CompliantText), "1", "L", false)
	}

	return d.output(w)
}
