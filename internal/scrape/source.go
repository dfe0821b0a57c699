package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"bilancio/internal/core"
)

// Fields are the key/value pairs a scraper script needs for one account:
// login, password, account number and whatever else the provider wants.
type Fields map[string]string

// Credentials is the nested service -> provider -> account mapping loaded
// from the credentials file. The top-level key is the source kind the
// provider's rows belong to ("bank" or "credit_card").
type Credentials map[core.SourceKind]map[string]map[string]Fields

// LoadCredentials reads the credentials file. A missing file is not an
// error; it just means there is nothing to pull.
func LoadCredentials(path string) (Credentials, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Credentials{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	for kind := range creds {
		if !kind.IsValid() {
			return nil, fmt.Errorf("parse credentials: unknown source kind %q", kind)
		}
	}
	return creds, nil
}

// FetchRequest identifies one account pull.
type FetchRequest struct {
	Kind     core.SourceKind
	Provider string
	Account  string
	Fields   Fields

	// Code delivers a two-factor code when the script asks for one. A nil
	// channel means no code will ever come; a prompt then fails the pull.
	Code <-chan string
}

// Source produces transaction rows for one account. ScriptSource is the
// real implementation; tests substitute their own.
type Source interface {
	Fetch(ctx context.Context, req FetchRequest) ([]core.Transaction, error)
}
