package validation

import (
	"fmt"
	"math"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/mmeshcher/aquabill/internal/billing"
	"github.com/mmeshcher/aquabill/internal/model"
)

const (
	minPasswordLen = 6

	// MaxItems ограничивает число позиций в счёте.
	MaxItems = 100
	// MaxItemQuantity ограничивает количество в одной позиции.
	MaxItemQuantity = 1_000_000
	// MaxItemPrice ограничивает цену позиции в денежных единицах.
	MaxItemPrice = 1_000_000_000
)

var (
	accountNumberRe = regexp.MustCompile(`^\d{4}$`)
	cardNumberRe    = regexp.MustCompile(`^(?:\d{4} ?){3}\d{4}$`)
	expiryRe        = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvcRe           = regexp.MustCompile(`^\d{3,4}$`)
)

// Errors содержит ошибки проверки формы: имя поля -> сообщение.
type Errors map[string]string

// Error реализует интерфейс error.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+e[f])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e Errors) add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

func (e Errors) result() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// IsEmail проверяет, что строка является одиночным адресом электронной почты.
func IsEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	at := strings.LastIndex(s, "@")
	return at > 0 && strings.Contains(s[at+1:], ".")
}

// Signup проверяет форму регистрации.
func Signup(in model.SignupInput) error {
	errs := Errors{}
	checkEmail(errs, "email", in.Email, "Please enter a valid email.")
	checkPassword(errs, in.Password)
	if in.Password != in.ConfirmPassword {
		errs.add("confirmPassword", "Passwords don't match")
	}
	return errs.result()
}

// Login проверяет форму входа.
func Login(in model.LoginInput) error {
	errs := Errors{}
	checkEmail(errs, "email", in.Email, "Please enter a valid email.")
	checkPassword(errs, in.Password)
	return errs.result()
}

// Invoice проверяет форму создания счёта.
func Invoice(in model.InvoiceInput) error {
	errs := Errors{}

	if strings.TrimSpace(in.CustomerName) == "" {
		errs.add("customerName", "Customer name is required.")
	}
	checkEmail(errs, "customerEmail", in.CustomerEmail, "Invalid email address.")

	if in.InvoiceDate.IsZero() {
		errs.add("invoiceDate", "Invoice date is required.")
	}
	if in.DueDate.IsZero() {
		errs.add("dueDate", "Due date is required.")
	}
	if !in.InvoiceDate.IsZero() && !in.DueDate.IsZero() && in.DueDate.Before(in.InvoiceDate) {
		errs.add("dueDate", "Due date cannot be before the invoice date.")
	}

	if !in.Status.Valid() {
		errs.add("status", "Invalid status.")
	}

	if len(in.Items) == 0 {
		errs.add("items", "At least one item is required.")
	} else if len(in.Items) > MaxItems {
		errs.add("items", fmt.Sprintf("No more than %d items are allowed.", MaxItems))
	}
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items.%d.", i)
		if strings.TrimSpace(it.Description) == "" {
			errs.add(prefix+"description", "Description is required.")
		}
		switch {
		case it.Quantity < 1:
			errs.add(prefix+"quantity", "Quantity must be at least 1.")
		case it.Quantity > MaxItemQuantity:
			errs.add(prefix+"quantity", fmt.Sprintf("Quantity cannot exceed %d.", MaxItemQuantity))
		}
		switch {
		case !isFinite(it.Price):
			errs.add(prefix+"price", "Price must be a number.")
		case it.Price < 0:
			errs.add(prefix+"price", "Price cannot be negative.")
		case it.Price > MaxItemPrice:
			errs.add(prefix+"price", fmt.Sprintf("Price cannot exceed %d.", MaxItemPrice))
		}
	}

	return errs.result()
}

// GeneratedInvoice проверяет форму выставления счёта бухгалтером.
func GeneratedInvoice(in model.GenerateInvoiceInput) error {
	errs := Errors{}

	if len(in.Items) == 0 {
		errs.add("items", "Debe haber al menos un item.")
	} else if len(in.Items) > MaxItems {
		errs.add("items", fmt.Sprintf("No puede haber más de %d items.", MaxItems))
	}
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items.%d.", i)
		if strings.TrimSpace(it.Description) == "" {
			errs.add(prefix+"description", "La descripción no puede estar vacía.")
		}
		switch {
		case !isFinite(it.Amount) || it.Amount <= 0:
			errs.add(prefix+"amount", "El monto debe ser positivo.")
		case it.Amount > MaxItemPrice:
			errs.add(prefix+"amount", fmt.Sprintf("El monto no puede superar %d.", MaxItemPrice))
		}
	}

	return errs.result()
}

// WaterBill проверяет форму поиска квитанции за воду.
func WaterBill(in model.WaterBillInput) error {
	errs := Errors{}
	checkWaterBill(errs, in.AccountNumber, in.BillingPeriod)
	return errs.result()
}

// Payment проверяет форму оплаты квитанции картой.
func Payment(in model.PaymentInput) error {
	errs := Errors{}
	checkWaterBill(errs, in.AccountNumber, in.BillingPeriod)

	if !cardNumberRe.MatchString(in.CardNumber) || !IsValidLuhn(strings.ReplaceAll(in.CardNumber, " ", "")) {
		errs.add("cardNumber", "Número de tarjeta inválido.")
	}
	if !expiryRe.MatchString(in.ExpiryDate) {
		errs.add("expiryDate", "Formato MM/AA.")
	}
	if !cvcRe.MatchString(in.CVC) {
		errs.add("cvc", "CVC inválido.")
	}
	if utf8.RuneCountInString(strings.TrimSpace(in.CardHolder)) < 3 {
		errs.add("cardHolder", "El nombre es muy corto.")
	}

	return errs.result()
}

func checkWaterBill(errs Errors, account, period string) {
	if !accountNumberRe.MatchString(account) {
		errs.add("accountNumber", "Debe ser un número de 4 dígitos.")
	}
	if period == "" {
		errs.add("billingPeriod", "Debes seleccionar un período.")
	} else if _, err := billing.ParsePeriod(period); err != nil {
		errs.add("billingPeriod", "Período inválido.")
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func checkEmail(errs Errors, field, value, msg string) {
	if !IsEmail(value) {
		errs.add(field, msg)
	}
}

func checkPassword(errs Errors, password string) {
	if utf8.RuneCountInString(password) < minPasswordLen {
		errs.add("password", "Password must be at least 6 characters.")
	}
}
