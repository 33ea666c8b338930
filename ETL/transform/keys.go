package transform

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Префиксы суррогатных ключей по умолчанию
const (
	CustomerKeyPrefix = "CUST"
	ProductKeyPrefix  = "PROD"
	DateKeyPrefix     = "DATE"
	SalesKeyPrefix    = "SALES"
)

// ErrMalformedKey существующий ключ не имеет вида <префикс><целое число>
var ErrMalformedKey = errors.New("некорректный суррогатный ключ")

// NextSequence возвращает номер, с которого продолжается последовательность ключей:
// максимум среди существующих ключей плюс один, либо 1 для пустого набора.
func NextSequence(existing []string, prefix string) (int, error) {
	maxSeq := 0
	for _, key := range existing {
		seq, err := parseKey(key, prefix)
		if err != nil {
			return 0, err
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	return maxSeq + 1, nil
}

func parseKey(key, prefix string) (int, error) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || rest == "" {
		return 0, fmt.Errorf("%w: %q (ожидался префикс %q)", ErrMalformedKey, key, prefix)
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: %q (ожидался префикс %q)", ErrMalformedKey, key, prefix)
		}
	}
	seq, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrMalformedKey, key, err)
	}
	return seq, nil
}

// FormatKey форматирует суррогатный ключ
func FormatKey(prefix string, seq int) string {
	return prefix + strconv.Itoa(seq)
}

// GenerateKeys присваивает строкам последовательные ключи в исходном порядке,
// продолжая последовательность существующих ключей. Входной срез не изменяется.
func GenerateKeys[T any](rows []T, existing []string, prefix string, setKey func(*T, string)) ([]T, error) {
	start, err := NextSequence(existing, prefix)
	if err != nil {
		return nil, err
	}

	keyed := slices.Clone(rows)
	for i := range keyed {
		setKey(&keyed[i], FormatKey(prefix, start+i))
	}
	return keyed, nil
}
