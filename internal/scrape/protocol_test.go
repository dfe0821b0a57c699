package scrape

import (
	"errors"
	"testing"

	"bilancio/internal/core"
)

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		count    int
		isHeader bool
		wantErr  bool
	}{
		{name: "valid", line: "found 12 transactions", count: 12, isHeader: true},
		{name: "zero", line: "found 0 transactions", count: 0, isHeader: true},
		{name: "padded", line: "  found 3 transactions  ", count: 3, isHeader: true},
		{name: "chatter", line: "logging in to provider", isHeader: false},
		{name: "bad count", line: "found lots transactions", isHeader: true, wantErr: true},
		{name: "negative", line: "found -1 transactions", isHeader: true, wantErr: true},
		{name: "truncated", line: "found 12", isHeader: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, isHeader, err := ParseHeader(tt.line)
			if isHeader != tt.isHeader {
				t.Fatalf("ParseHeader(%q) isHeader = %v, want %v", tt.line, isHeader, tt.isHeader)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHeader(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if err == nil && count != tt.count {
				t.Errorf("ParseHeader(%q) = %d, want %d", tt.line, count, tt.count)
			}
		})
	}
}

func TestParseRow(t *testing.T) {
	row, err := ParseRow("date: 2024-03-05| amount: -12.34| desc: COOP GENOVA| status: settled| type: card")
	if err != nil {
		t.Fatalf("ParseRow() error = %v", err)
	}
	if row.Date.ISO() != "2024-03-05" {
		t.Errorf("date = %s", row.Date.ISO())
	}
	if row.Spent.Cents != 1234 {
		t.Errorf("spent = %d cents, want the stored sign flipped once", row.Spent.Cents)
	}
	if row.Description != "COOP GENOVA" || row.Status != "settled" || row.Type != "card" {
		t.Errorf("row = %+v", row)
	}
}

func TestParseRowRefund(t *testing.T) {
	row, err := ParseRow("date: 05/03/2024| amount: 20.00| desc: REFUND")
	if err != nil {
		t.Fatalf("ParseRow() error = %v", err)
	}
	if row.Date.ISO() != "2024-03-05" {
		t.Errorf("day-first date = %s", row.Date.ISO())
	}
	if row.Spent.Cents != -2000 {
		t.Errorf("refund spent = %d cents, want negative", row.Spent.Cents)
	}
}

func TestParseRowMalformed(t *testing.T) {
	lines := []string{
		"date: 2024-03-05| amount: -12.34",                      // missing desc
		"date 2024-03-05| amount: -12.34| desc: X",              // field without separator
		"date: yesterday| amount: -12.34| desc: X",              // bad date
		"date: 2024-03-05| amount: twelve| desc: X",             // bad amount
		"amount: -12.34| desc: X",                               // missing date
	}
	for _, line := range lines {
		if _, err := ParseRow(line); !errors.Is(err, ErrMalformedRow) {
			t.Errorf("ParseRow(%q) = %v, want ErrMalformedRow", line, err)
		}
	}
}

func TestRowTransaction(t *testing.T) {
	row := Row{Date: core.NewDate(2024, 3, 5), Spent: core.Money{Cents: 1234}, Description: "X"}
	txn := row.Transaction(core.SourceCard, "testbank", "12345", "Main")
	if txn.Source != core.SourceCard || txn.Provider != "testbank" || txn.AccountNumber != "12345" {
		t.Errorf("transaction binding = %+v", txn)
	}
}

func TestIsCodePrompt(t *testing.T) {
	if !IsCodePrompt("code required: enter the SMS code") {
		t.Error("prompt with detail not recognized")
	}
	if !IsCodePrompt("CODE REQUIRED") {
		t.Error("prompt matching must be case-insensitive")
	}
	if IsCodePrompt("found 3 transactions") {
		t.Error("header mistaken for a prompt")
	}
}
