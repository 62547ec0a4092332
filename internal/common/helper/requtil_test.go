package helper

import (
	"strings"
	"testing"
)

func TestIsMoneyFormat(t *testing.T) {
	valid := []string{"0", "1", "10", "0.5", "0.50", "123.45", " 2.00 "}
	for _, s := range valid {
		if !IsMoneyFormat(s) {
			t.Fatalf("should accept %q", s)
		}
	}
	invalid := []string{"", "-1", "1.234", "01", ".5", "1.", "abc", "1,00"}
	for _, s := range invalid {
		if IsMoneyFormat(s) {
			t.Fatalf("should reject %q", s)
		}
	}
}

func TestIsRequestIDFormat(t *testing.T) {
	if !IsRequestIDFormat("0123456789abcdef0123456789abcdef") {
		t.Fatalf("should accept 32 hex chars")
	}
	invalid := []string{
		"",
		"0123456789abcdef0123456789abcde",   // 31
		"0123456789abcdef0123456789abcdef0", // 33
		"0123456789ABCDEF0123456789ABCDEF",  // 大写
		"0123456789abcdeg0123456789abcdef",  // 非hex
	}
	for _, s := range invalid {
		if IsRequestIDFormat(s) {
			t.Fatalf("should reject %q", s)
		}
	}
}

func TestValidateSelect(t *testing.T) {
	ok, _ := ValidateSelect(&SelectParsed{Numbers: []int{1, 2}, PaidAmount: "2.00", IdempotencyKey: "k1"})
	if !ok {
		t.Fatalf("valid input rejected")
	}

	cases := []SelectParsed{
		{Numbers: nil, PaidAmount: "2.00", IdempotencyKey: "k1"},
		{Numbers: []int{1}, PaidAmount: "", IdempotencyKey: "k1"},
		{Numbers: []int{1}, PaidAmount: "1.234", IdempotencyKey: "k1"},
		{Numbers: []int{1}, PaidAmount: "1.00", IdempotencyKey: ""},
		{Numbers: []int{1}, PaidAmount: "1.00", IdempotencyKey: strings.Repeat("k", 65)},
	}
	for i, c := range cases {
		if ok, _ := ValidateSelect(&c); ok {
			t.Fatalf("case %d should fail: %+v", i, c)
		}
	}
}

func TestValidateFulfill(t *testing.T) {
	in := FulfillParsed{RequestID: "0123456789abcdef0123456789abcdef", RandomValue: "18446744073709551615"}
	v, ok, _ := ValidateFulfill(&in)
	if !ok {
		t.Fatalf("valid input rejected")
	}
	if v != 18446744073709551615 {
		t.Fatalf("random value = %d", v)
	}

	bad := []FulfillParsed{
		{RequestID: "", RandomValue: "1"},
		{RequestID: "short", RandomValue: "1"},
		{RequestID: "0123456789abcdef0123456789abcdef", RandomValue: ""},
		{RequestID: "0123456789abcdef0123456789abcdef", RandomValue: "-1"},
		{RequestID: "0123456789abcdef0123456789abcdef", RandomValue: "abc"},
		{RequestID: "0123456789abcdef0123456789abcdef", RandomValue: "18446744073709551616"}, // 溢出
	}
	for i, c := range bad {
		if _, ok, _ := ValidateFulfill(&c); ok {
			t.Fatalf("case %d should fail: %+v", i, c)
		}
	}
}

func TestValidatePerform(t *testing.T) {
	for _, a := range []string{"end_round", "request_entropy", "start_next_round"} {
		if ok, _ := ValidatePerform(&PerformParsed{Action: a}); !ok {
			t.Fatalf("should accept %q", a)
		}
	}
	for _, a := range []string{"", "nope", "END_ROUND"} {
		if ok, _ := ValidatePerform(&PerformParsed{Action: a}); ok {
			t.Fatalf("should reject %q", a)
		}
	}
}

func TestValidateWithdraw(t *testing.T) {
	if ok, _ := ValidateWithdraw(&WithdrawParsed{Amount: "10.00"}); !ok {
		t.Fatalf("valid amount rejected")
	}
	for _, a := range []string{"", "-1", "1.234", "abc"} {
		if ok, _ := ValidateWithdraw(&WithdrawParsed{Amount: a}); ok {
			t.Fatalf("should reject %q", a)
		}
	}
}
