package util

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	reCurrency  = regexp.MustCompile(`[¥￥元$]`)
	reSeparator = regexp.MustCompile(`[,，\s\x{00A0}]`)
)

// StrCell returns nil for an empty cell and the raw text otherwise. Cell text
// is deliberately not trimmed; classification and identity matching are exact.
func StrCell(input string) *string {
	if input == "" {
		return nil
	}
	s := input
	return &s
}

// ParseAmount reads a numeric cell, tolerating currency marks, thousand
// separators and stray whitespace. Empty or unparseable cells come back nil.
func ParseAmount(input string) *float64 {
	token := normalizeNumericToken(input)
	if token == "" {
		return nil
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil
	}
	return FloatPtr(v)
}

// ParseCount reads an integer cell. Fractional values are truncated the way
// the export renders whole numbers as "3.0".
func ParseCount(input string) *int64 {
	f := ParseAmount(input)
	if f == nil {
		return nil
	}
	return IntPtr(int64(*f))
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/1/2 15:04:05",
	"2006/1/2",
	"1-2-06 15:04",
	"1-2-06",
	"1/2/06",
}

// ParseDate reads a date cell in any of the formats the spreadsheet exports
// are known to use. Results are UTC; unparseable cells come back nil.
func ParseDate(input string) *time.Time {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TimePtr(t.UTC())
		}
	}
	return nil
}

func normalizeNumericToken(input string) string {
	s := reCurrency.ReplaceAllString(input, "")
	s = reSeparator.ReplaceAllString(s, "")
	if s == "" || s == "-" {
		return ""
	}
	return s
}
