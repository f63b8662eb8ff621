// Package model содержит доменные сущности сервиса aquabill.
package model

import "time"

// Role описывает роль учётной записи.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAccountant Role = "accountant"
)

// Valid сообщает, является ли роль одной из известных.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleAccountant
}

// User представляет зарегистрированного пользователя.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Profile возвращает публичное представление пользователя.
func (u User) Profile() Profile {
	return Profile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}

// Profile содержит данные профиля, которые можно отдавать клиенту.
type Profile struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// LineItem описывает одну позицию счёта.
type LineItem struct {
	ID          string
	Description string
	Quantity    int64
	PriceCents  int64
}

// Invoice описывает счёт пользователя.
type Invoice struct {
	ID            string
	Number        string
	UserID        int64
	CustomerName  string
	CustomerEmail string
	InvoiceDate   time.Time
	DueDate       time.Time
	Items         []LineItem
	TotalCents    int64
	Status        InvoiceStatus
	Notes         string
	CompliantText string
	CreatedAt     time.Time
}

// WaterBillQuote содержит сумму и срок оплаты квитанции за воду. Не сохраняется.
type WaterBillQuote struct {
	AccountNumber string
	Period        string
	PeriodLabel   string
	AmountCents   int64
	DueDate       time.Time
}

// Payment описывает оплату квитанции за воду.
type Payment struct {
	ID                string
	UserID            int64
	AccountNumber     string
	Period            string
	AmountCents       int64
	CardHolder        string
	CardLast4         string
	TransactionID     string
	AuthorizationCode string
	PaidAt            time.Time
}

// BillingPeriod описывает расчётный период для выбора в форме.
type BillingPeriod struct {
	Value string `json:"value"`
	Label string `json:"label"`
}
