package tle

import (
	"math"
	"strconv"
	"strings"
)

// columns reads fixed-width fields out of one element line.
// Positions are 1-based and inclusive.
type columns struct {
	line int
	text string
}

func (c columns) raw(start, end int) string {
	return c.text[start-1 : end]
}

func (c columns) fail(field string, start, end int, reason string) error {
	return &FieldError{Line: c.line, Field: field, Start: start, End: end, Value: c.raw(start, end), Reason: reason}
}

func (c columns) integer(field string, start, end int) (int, error) {
	s := strings.TrimSpace(c.raw(start, end))
	if s == "" {
		return 0, c.fail(field, start, end, "blank field")
	}
	if !isDigits(s) {
		return 0, c.fail(field, start, end, "not an unsigned integer")
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, c.fail(field, start, end, err.Error())
	}
	return v, nil
}

// decimal parses a field with an optional sign and an explicit decimal point.
func (c columns) decimal(field string, start, end int) (float64, error) {
	s := strings.TrimSpace(c.raw(start, end))
	if s == "" {
		return 0, c.fail(field, start, end, "blank field")
	}
	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 || body == "" || strings.Count(body, ".") > 1 || !isDigits(strings.Replace(body, ".", "", 1)) {
		return 0, c.fail(field, start, end, "not a decimal number")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, c.fail(field, start, end, err.Error())
	}
	return v, nil
}

// impliedDecimal parses digits with an assumed leading decimal point,
// as used for eccentricity ("0006764" is 0.0006764).
func (c columns) impliedDecimal(field string, start, end int) (float64, error) {
	s := strings.TrimSpace(c.raw(start, end))
	if s == "" {
		return 0, c.fail(field, start, end, "blank field")
	}
	if !isDigits(s) {
		return 0, c.fail(field, start, end, "not an implied-decimal number")
	}
	v, err := strconv.ParseFloat("0."+s, 64)
	if err != nil {
		return 0, c.fail(field, start, end, err.Error())
	}
	return v, nil
}

// exponential parses the packed "±NNNNN±E" notation used for B* and the
// second derivative of mean motion (" 30129-3" is 0.30129e-3).
func (c columns) exponential(field string, start, end int) (float64, error) {
	s := strings.TrimSpace(c.raw(start, end))
	if s == "" {
		return 0, c.fail(field, start, end, "blank field")
	}
	sign := 1.0
	switch s[0] {
	case '-':
		sign = -1
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 3 {
		return 0, c.fail(field, start, end, "too short for mantissa and exponent")
	}
	mant, expSign, expDigit := s[:len(s)-2], s[len(s)-2], s[len(s)-1]
	if !isDigits(mant) || (expSign != '-' && expSign != '+') || expDigit < '0' || expDigit > '9' {
		return 0, c.fail(field, start, end, "not in packed exponent notation")
	}
	m, err := strconv.ParseFloat("0."+mant, 64)
	if err != nil {
		return 0, c.fail(field, start, end, err.Error())
	}
	exp := float64(expDigit - '0')
	if expSign == '-' {
		exp = -exp
	}
	return sign * m * math.Pow(10, exp), nil
}

// catalog parses a satellite number, accepting the Alpha-5 form
// where a leading letter extends the range past 99999.
func (c columns) catalog(field string, start, end int) (int, error) {
	s := c.raw(start, end)
	if s[0] >= 'A' && s[0] <= 'Z' {
		lead := int(s[0]-'A') + 10
		if s[0] > 'I' {
			lead--
		}
		if s[0] > 'O' {
			lead--
		}
		if s[0] == 'I' || s[0] == 'O' || !isDigits(s[1:]) {
			return 0, c.fail(field, start, end, "invalid Alpha-5 catalog number")
		}
		rest, _ := strconv.Atoi(s[1:])
		return lead*10000 + rest, nil
	}
	return c.integer(field, start, end)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
