// Package billing содержит расчёт сумм счетов и квитанций за воду.
package billing

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmeshcher/aquabill/internal/model"
)

const (
	// WaterRatePerM3Cents задаёт тариф за кубический метр воды в центах.
	WaterRatePerM3Cents = 1500
	// WaterConsumptionCentiM3 задаёт фиксированный объём потребления в сотых долях кубометра (3.04 м³).
	WaterConsumptionCentiM3 = 304

	waterDueOffsetDays = 5
	invoiceDueDays     = 30

	periodLayout = "2006-01"
)

// ErrAmountOutOfRange возвращается, если сумма не помещается в int64 центов.
var ErrAmountOutOfRange = errors.New("amount out of range")

// ToCents переводит сумму в денежных единицах в центы с округлением.
func ToCents(amount float64) (int64, error) {
	cents := math.Round(amount * 100)
	if math.IsNaN(cents) || cents >= 1<<63 || cents < -(1<<63) {
		return 0, fmt.Errorf("%w: %v", ErrAmountOutOfRange, amount)
	}
	return int64(cents), nil
}

// FromCents переводит центы в денежные единицы.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// LineTotal возвращает сумму позиции: количество × цена.
// Для сохранённых позиций переполнение исключено проверкой в Total.
func LineTotal(item model.LineItem) int64 {
	return item.Quantity * item.PriceCents
}

func checkedLineTotal(item model.LineItem) (int64, error) {
	if item.Quantity < 0 || item.PriceCents < 0 {
		return 0, fmt.Errorf("%w: negative line item", ErrAmountOutOfRange)
	}
	hi, lo := bits.Mul64(uint64(item.Quantity), uint64(item.PriceCents))
	if hi != 0 || lo > math.MaxInt64 {
		return 0, fmt.Errorf("%w: line total overflows", ErrAmountOutOfRange)
	}
	return int64(lo), nil
}

// Total возвращает сумму счёта как Σ(количество × цена) по всем позициям.
// Отрицательные позиции и переполнение дают ErrAmountOutOfRange.
func Total(items []model.LineItem) (int64, error) {
	var total int64
	for _, it := range items {
		line, err := checkedLineTotal(it)
		if err != nil {
			return 0, err
		}
		if total > math.MaxInt64-line {
			return 0, fmt.Errorf("%w: invoice total overflows", ErrAmountOutOfRange)
		}
		total += line
	}
	return total, nil
}

// NewInvoiceNumber формирует номер счёта вида INV-20261018-1234.
func NewInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%04d", now.Format("20060102"), now.UnixMilli()%10000)
}

// GeneratedInvoiceNumber формирует номер счёта, выставленного бухгалтером.
func GeneratedInvoiceNumber(now time.Time) string {
	return "INV-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// DefaultDueDate возвращает срок оплаты по умолчанию для выставленного счёта.
func DefaultDueDate(issue time.Time) time.Time {
	return issue.AddDate(0, 0, invoiceDueDays)
}

// WaterBillAmount возвращает сумму квитанции за воду в центах.
func WaterBillAmount() int64 {
	return WaterRatePerM3Cents * WaterConsumptionCentiM3 / 100
}

// ParsePeriod разбирает расчётный период вида 2026-10. Также принимается подпись
// периода из квитанции: «octubre 2026», «oct-2026», «Dec 2026».
func ParsePeriod(period string) (time.Time, error) {
	t, err := time.Parse(periodLayout, period)
	if err == nil {
		return t, nil
	}

	if t, ok := parsePeriodLabel(period); ok {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("parse billing period %q: %w", period, err)
}

func parsePeriodLabel(label string) (time.Time, bool) {
	fields := strings.FieldsFunc(strings.TrimSpace(label), func(r rune) bool { return r == ' ' || r == '-' })
	if len(fields) != 2 {
		return time.Time{}, false
	}

	name, ok := LabelForAbbreviation(fields[0])
	if !ok {
		name = strings.ToLower(fields[0])
	}
	month := monthByName(name)
	if month == 0 {
		return time.Time{}, false
	}

	year, err := strconv.Atoi(fields[1])
	if err != nil || year < 1 || year > 9999 {
		return time.Time{}, false
	}
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC), true
}

// QuoteWaterBill рассчитывает квитанцию за воду для лицевого счёта и периода.
// Срок оплаты наступает на пятый день после окончания месяца периода.
func QuoteWaterBill(accountNumber, period string) (model.WaterBillQuote, error) {
	start, err := ParsePeriod(period)
	if err != nil {
		return model.WaterBillQuote{}, err
	}

	return model.WaterBillQuote{
		AccountNumber: accountNumber,
		Period:        start.Format(periodLayout),
		PeriodLabel:   MonthLabel(start),
		AmountCents:   WaterBillAmount(),
		DueDate:       endOfMonth(start).AddDate(0, 0, waterDueOffsetDays),
	}, nil
}

func endOfMonth(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1)
}

// BillingPeriods возвращает n последних расчётных периодов, начиная с текущего месяца.
func BillingPeriods(now time.Time, n int) []model.BillingPeriod {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	res := make([]model.BillingPeriod, 0, n)
	for i := 0; i < n; i++ {
		d := first.AddDate(0, -i, 0)
		res = append(res, model.BillingPeriod{
			Value: d.Format(periodLayout),
			Label: MonthLabel(d),
		})
	}
	return res
}

var amountPrinter = message.NewPrinter(language.English)

// FormatAmount форматирует сумму в центах как $1,234.56.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, amountPrinter.Sprintf("%d", cents/100), cents%100)
}
