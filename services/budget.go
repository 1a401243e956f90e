package services

import (
	"errors"
	"strconv"
	"strings"
)

var (
	errBudgetFormat = errors.New("budget must look like 5000, 3000-6000, 10000+ or under 2000")
	errBudgetRange  = errors.New("budget is larger than any job we quote")
)

// maxBudget caps parsed amounts, in whole dollars.
const maxBudget int64 = 100_000_000

// Budget is a parsed budget range in whole dollars. Max is nil when the
// range is open ended.
type Budget struct {
	Min int64
	Max *int64
}

// ParseBudget accepts "N", "N-M", "N+", "under N" and "less than N", with an
// optional $ sign, thousands separators and a k suffix.
func ParseBudget(raw string) (Budget, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return Budget{}, errBudgetFormat
	}

	for _, prefix := range []string{"under ", "less than ", "below ", "<"} {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			max, err := parseAmount(rest)
			if err != nil {
				return Budget{}, err
			}
			return Budget{Min: 0, Max: &max}, nil
		}
	}

	if rest, ok := strings.CutSuffix(s, "+"); ok {
		min, err := parseAmount(rest)
		if err != nil {
			return Budget{}, err
		}
		return Budget{Min: min}, nil
	}

	if lo, hi, ok := strings.Cut(s, "-"); ok {
		min, err := parseAmount(lo)
		if err != nil {
			return Budget{}, err
		}
		max, err := parseAmount(hi)
		if err != nil {
			return Budget{}, err
		}
		if min > max {
			return Budget{}, errors.New("budget range minimum is above its maximum")
		}
		return Budget{Min: min, Max: &max}, nil
	}

	n, err := parseAmount(s)
	if err != nil {
		return Budget{}, err
	}
	return Budget{Min: n, Max: &n}, nil
}

func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	multiplier := int64(1)
	if rest, ok := strings.CutSuffix(s, "k"); ok {
		s, multiplier = strings.TrimSpace(rest), 1000
	}
	if s == "" {
		return 0, errBudgetFormat
	}

	if strings.Contains(s, ".") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 {
			return 0, errBudgetFormat
		}
		v := f * float64(multiplier)
		if !(v <= float64(maxBudget)) {
			return 0, errBudgetRange
		}
		return int64(v), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return 0, errBudgetRange
	}
	if err != nil || n < 0 {
		return 0, errBudgetFormat
	}
	if n > maxBudget/multiplier {
		return 0, errBudgetRange
	}
	return n * multiplier, nil
}
