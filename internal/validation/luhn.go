// Package validation содержит правила проверки данных форм.
package validation

// удвоенная цифра по модулю 9, как её считает алгоритм Луна
var luhnDoubled = [10]int{0, 2, 4, 6, 8, 1, 3, 5, 7, 9}

// IsValidLuhn проверяет строку из цифр по алгоритму Луна.
// Удваивается каждая вторая цифра, начиная с предпоследней.
func IsValidLuhn(number string) bool {
	if number == "" {
		return false
	}

	parity := len(number) % 2
	sum := 0
	for i := 0; i < len(number); i++ {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if i%2 == parity {
			d = luhnDoubled[d]
		}
		sum += d
	}

	return sum%10 == 0
}
