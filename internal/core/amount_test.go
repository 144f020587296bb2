package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"10.50", "10.5", true},
		{"10,50", "10.5", true},
		{" 0.4500 ", "0.45", true},
		{"100000", "100000", true},
		{"", "0", true},
		{"   ", "0", true},
		{"-1", "", false},
		{"+1", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"R$ 10", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestParseAdjustment(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"0.25", "0.25", true},
		{"-0,10", "-0.1", true},
		{"- 1", "-1", true},
		{"", "0", true},
		{"--1", "", false},
		{"+1", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAdjustment(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !IsValidation(err) {
			t.Fatalf("%q expected validation error, got %v", tc.in, err)
		}
	}
}
