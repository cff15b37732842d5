package tle

// Checksum computes the modulo-10 checksum over the first 68 columns of a line.
// Digits count their value, a minus sign counts as 1, everything else is 0.
func Checksum(line string) int {
	n := len(line)
	if n > 68 {
		n = 68
	}
	sum := 0
	for i := 0; i < n; i++ {
		c := line[i]
		switch {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}
	return sum % 10
}

func verifyChecksum(lineNo int, line string) error {
	c := line[68]
	if c < '0' || c > '9' {
		return &FieldError{Line: lineNo, Field: "checksum", Start: 69, End: 69, Value: string(c), Reason: "not a digit"}
	}
	want := int(c - '0')
	if got := Checksum(line); got != want {
		return &FieldError{Line: lineNo, Field: "checksum", Start: 69, End: 69, Value: string(c),
			Reason: "computed " + string(rune('0'+got))}
	}
	return nil
}
