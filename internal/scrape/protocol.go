// Package scrape pulls transaction rows out of per-provider scraper
// scripts. The scripts are external collaborators speaking a line-oriented
// text protocol; this package owns the parsing, the subprocess lifecycle,
// the two-factor handshake and the fan-out across accounts.
package scrape

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"bilancio/internal/core"
)

// The child process announces its result set with a header line
//
//	found N transactions
//
// followed by exactly N rows of the form
//
//	date: 2024-03-05| amount: -12.34| desc: COOP GENOVA| status: settled| type: card
//
// A row that does not follow the contract is a protocol violation and fails
// the whole account pull; skipping rows would silently lose money movements.
const (
	headerPrefix = "found "
	headerSuffix = " transactions"

	// codePrompt is how the child asks for a two-factor code on stdout.
	codePrompt = "code required"
)

var (
	ErrBadHeader    = errors.New("malformed transaction count header")
	ErrMalformedRow = errors.New("malformed transaction row")
)

// Row is one parsed protocol line, not yet bound to an account.
type Row struct {
	Date        core.Date
	Spent       core.Money
	Description string
	Status      string
	Type        string
}

// ParseHeader extracts the announced row count. The second return value is
// false when the line is not a header at all.
func ParseHeader(line string) (int, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, headerPrefix) {
		return 0, false, nil
	}
	body := strings.TrimPrefix(line, headerPrefix)
	if !strings.HasSuffix(body, headerSuffix) {
		return 0, true, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	n, err := strconv.Atoi(strings.TrimSuffix(body, headerSuffix))
	if err != nil || n < 0 {
		return 0, true, fmt.Errorf("%w: %q", ErrBadHeader, line)
	}
	return n, true, nil
}

// IsCodePrompt reports whether the line is the child's two-factor
// challenge.
func IsCodePrompt(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(line)), codePrompt)
}

// ParseRow parses one `key: value|` line.
func ParseRow(line string) (Row, error) {
	fields := make(map[string]string)
	for _, part := range strings.Split(line, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			return Row{}, fmt.Errorf("%w: field %q has no separator", ErrMalformedRow, part)
		}
		fields[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
	}

	for _, required := range []string{"date", "amount", "desc"} {
		if fields[required] == "" {
			return Row{}, fmt.Errorf("%w: missing %s", ErrMalformedRow, required)
		}
	}

	date, err := parseRowDate(fields["date"])
	if err != nil {
		return Row{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}
	spent, err := parseRowAmount(fields["amount"])
	if err != nil {
		return Row{}, fmt.Errorf("%w: %v", ErrMalformedRow, err)
	}

	return Row{
		Date:        date,
		Spent:       spent,
		Description: fields["desc"],
		Status:      fields["status"],
		Type:        fields["type"],
	}, nil
}

// Transaction binds a parsed row to the account it was pulled for.
func (r Row) Transaction(kind core.SourceKind, provider, accountNumber, accountName string) core.Transaction {
	return core.Transaction{
		Date:          r.Date,
		Description:   r.Description,
		Spent:         r.Spent,
		AccountNumber: accountNumber,
		AccountName:   accountName,
		Provider:      provider,
		Status:        r.Status,
		Type:          r.Type,
		Source:        kind,
	}
}

func parseRowDate(s string) (core.Date, error) {
	if d, err := core.ParseDate(s); err == nil {
		return d, nil
	}
	// Bank exports often use day-first dates.
	parts := strings.Split(s, "/")
	if len(parts) == 3 {
		return core.ParseDate(fmt.Sprintf("%s-%s-%s", parts[2], parts[1], parts[0]))
	}
	return core.Date{}, fmt.Errorf("unparseable date %q", s)
}

// parseRowAmount converts the signed stored amount into spent cents.
// Expenses arrive negative and come out positive; refunds the opposite.
func parseRowAmount(s string) (core.Money, error) {
	negative := strings.HasPrefix(s, "-")
	cents, err := core.ParseDecimalToCents(strings.TrimPrefix(s, "-"))
	if err != nil {
		return core.Money{}, fmt.Errorf("unparseable amount %q", s)
	}
	if negative {
		return core.Money{Cents: cents}, nil
	}
	return core.Money{Cents: -cents}, nil
}
