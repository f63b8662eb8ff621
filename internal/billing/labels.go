package billing

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mmeshcher/aquabill/internal/model"
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var monthAbbrevs = [...]string{
	"ene", "feb", "mar", "abr", "may", "jun",
	"jul", "ago", "sept", "oct", "nov", "dic",
}

// английские сокращения, не совпадающие с испанскими
var englishAbbrevs = map[string]time.Month{
	"jan": time.January,
	"apr": time.April,
	"aug": time.August,
	"sep": time.September,
	"dec": time.December,
}

// MonthName возвращает испанское название месяца.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return monthNames[m-1]
}

func monthByName(name string) time.Month {
	for i, n := range monthNames {
		if n == name {
			return time.Month(i + 1)
		}
	}
	return 0
}

// MonthLabel возвращает подпись периода вида «octubre 2026».
func MonthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", MonthName(t.Month()), t.Year())
}

// LabelForAbbreviation возвращает полное испанское название месяца по сокращению.
func LabelForAbbreviation(abbr string) (string, bool) {
	key := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(abbr)), ".")
	if key == "" {
		return "", false
	}

	for i, a := range monthAbbrevs {
		if key == a {
			return monthNames[i], true
		}
	}
	if m, ok := englishAbbrevs[key]; ok {
		return MonthName(m), true
	}
	return "", false
}

// CutoffDate форматирует дату среза как «oct 24 2026».
func CutoffDate(t time.Time) string {
	return fmt.Sprintf("%s %02d %d", monthAbbrevs[t.Month()-1], t.Day(), t.Year())
}

// StatusLabel возвращает испанскую подпись статуса счёта.
func StatusLabel(s model.InvoiceStatus) string {
	switch s {
	case model.InvoiceStatusPaid:
		return "Pagada"
	case model.InvoiceStatusPending:
		return "Pendiente"
	case model.InvoiceStatusOverdue:
		return "Vencida"
	case model.InvoiceStatusDraft:
		return "Borrador"
	case model.InvoiceStatusSent:
		return "Enviada"
	default:
		return string(s)
	}
}

// MaskCardNumber скрывает все цифры номера карты, кроме последних четырёх.
func MaskCardNumber(number string) string {
	digits := onlyDigits(number)
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("#", len(digits)-4) + digits[len(digits)-4:]
}

// CardLast4 возвращает последние четыре цифры номера карты.
func CardLast4(number string) string {
	digits := onlyDigits(number)
	if len(digits) <= 4 {
		return digits
	}
	return digits[len(digits)-4:]
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
