package model

// InvoiceStatus описывает статус счёта.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "Draft"
	InvoiceStatusPending InvoiceStatus = "Pending"
	InvoiceStatusSent    InvoiceStatus = "Sent"
	InvoiceStatusPaid    InvoiceStatus = "Paid"
	InvoiceStatusOverdue InvoiceStatus = "Overdue"
)

var validNext = map[InvoiceStatus]map[InvoiceStatus]bool{
	InvoiceStatusDraft:   {InvoiceStatusPending: true, InvoiceStatusSent: true, InvoiceStatusPaid: true},
	InvoiceStatusPending: {InvoiceStatusSent: true, InvoiceStatusPaid: true, InvoiceStatusOverdue: true},
	InvoiceStatusSent:    {InvoiceStatusPaid: true, InvoiceStatusOverdue: true},
	InvoiceStatusOverdue: {InvoiceStatusPaid: true},
	InvoiceStatusPaid:    {},
}

// Valid сообщает, входит ли статус в фиксированный набор.
func (s InvoiceStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition сообщает, допустим ли переход статуса счёта from -> to.
func CanTransition(from, to InvoiceStatus) bool {
	if from == to {
		return from.Valid()
	}
	return validNext[from][to]
}
