// Package compliance формирует юридически корректный текст счёта с помощью генеративной модели.
package compliance

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/template"
)

// ErrEmptyInvoice возвращается, если модель не вернула текст счёта.
var ErrEmptyInvoice = errors.New("compliance: empty compliant invoice")

// Item описывает позицию счёта, передаваемую в модель.
type Item struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// Request содержит данные счёта и компании для генерации текста.
type Request struct {
	CustomerName      string  `json:"customerName"`
	InvoiceNumber     string  `json:"invoiceNumber"`
	Items             []Item  `json:"items"`
	TotalAmount       float64 `json:"totalAmount"`
	Date              string  `json:"date"`
	CompanyName       string  `json:"companyName"`
	CompanyAddress    string  `json:"companyAddress"`
	CompanyContact    string  `json:"companyContact"`
	LegalRequirements string  `json:"legalRequirements"`
}

// Response описывает ответ модели.
type Response struct {
	CompliantInvoice string `json:"compliantInvoice"`
}

var promptTemplate = template.Must(template.New("prompt").Parse(
	`You are an expert legal assistant specializing in generating invoices that are legally compliant.

You will generate an invoice using the provided information that is legally compliant.

Customer Name: {{.CustomerName}}
Invoice Number: {{.InvoiceNumber}}
Items: {{range .Items}}{{.Description}}: {{.Amount}}
{{end}}
Total Amount: {{.TotalAmount}}
Date: {{.Date}}
Company Name: {{.CompanyName}}
Company Address: {{.CompanyAddress}}
Company Contact: {{.CompanyContact}}
Legal Requirements: {{.LegalRequirements}}

Ensure the invoice includes all necessary information and meets all legal requirements as specified in Legal Requirements.
Return the invoice as a single string, ready to be displayed.
`))

// BuildPrompt подставляет данные запроса в шаблон промпта.
func BuildPrompt(req Request) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, req); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

func parseResponse(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var resp Response
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &resp); err != nil {
		return "", fmt.Errorf("decode model response: %w", err)
	}

	if strings.TrimSpace(resp.CompliantInvoice) == "" {
		return "", ErrEmptyInvoice
	}
	return resp.CompliantInvoice, nil
}
