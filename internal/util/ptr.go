package util

import "time"

func StringPtr(s string) *string { return &s }

func FloatPtr(f float64) *float64 { return &f }

func IntPtr(i int64) *int64 { return &i }

func TimePtr(t time.Time) *time.Time { return &t }
