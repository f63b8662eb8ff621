package model

import "time"

// SignupInput содержит данные формы регистрации.
type SignupInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// LoginInput содержит данные формы входа.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LineItemInput содержит позицию счёта в том виде, в каком её присылает форма.
type LineItemInput struct {
	Description string  `json:"description"`
	Quantity    int64   `json:"quantity"`
	Price       float64 `json:"price"`
}

// InvoiceInput содержит данные формы создания счёта.
type InvoiceInput struct {
	CustomerName  string          `json:"customerName"`
	CustomerEmail string          `json:"customerEmail"`
	InvoiceDate   time.Time       `json:"invoiceDate"`
	DueDate       time.Time       `json:"dueDate"`
	Status        InvoiceStatus   `json:"status"`
	Items         []LineItemInput `json:"items"`
	Notes         string          `json:"notes,omitempty"`
}

// GeneratedItemInput описывает позицию счёта, который бухгалтер выставляет клиенту.
type GeneratedItemInput struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}

// GenerateInvoiceInput содержит данные формы бухгалтера.
type GenerateInvoiceInput struct {
	Items []GeneratedItemInput `json:"items"`
}

// WaterBillInput содержит данные формы поиска квитанции за воду.
type WaterBillInput struct {
	AccountNumber string `json:"accountNumber"`
	BillingPeriod string `json:"billingPeriod"`
}

// PaymentInput содержит данные формы оплаты квитанции картой.
type PaymentInput struct {
	AccountNumber string `json:"accountNumber"`
	BillingPeriod string `json:"billingPeriod"`
	CardNumber    string `json:"cardNumber"`
	ExpiryDate    string `json:"expiryDate"`
	CVC           string `json:"cvc"`
	CardHolder    string `json:"cardHolder"`
}
