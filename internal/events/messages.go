package events

import (
	"encoding/json"
	"time"

	"bilancio/internal/scrape"
)

// Routing keys double as queue names on the direct exchange.
const (
	KeyPullCompleted = "pull.completed"
	KeyRulesChanged  = "rules.changed"
)

// PullCompletedMessage is the lightweight summary published after a data
// pull. Consumers wanting the rows fetch them from the database.
type PullCompletedMessage struct {
	Accounts  int       `json:"accounts"`
	Failed    []string  `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPullCompletedMessage(result scrape.PullResult) *PullCompletedMessage {
	msg := &PullCompletedMessage{
		Accounts:  len(result.Accounts),
		Timestamp: time.Now().UTC(),
	}
	for _, a := range result.Failed() {
		msg.Failed = append(msg.Failed, a.Provider+"/"+a.Account)
	}
	return msg
}

// RulesChangedMessage tells consumers which scope's allocation view is
// stale.
type RulesChangedMessage struct {
	Scope     string    `json:"scope"`
	Timestamp time.Time `json:"timestamp"`
}

func NewRulesChangedMessage(scopeKey string) *RulesChangedMessage {
	return &RulesChangedMessage{Scope: scopeKey, Timestamp: time.Now().UTC()}
}

func (m *PullCompletedMessage) ToJSON() ([]byte, error) { return json.Marshal(m) }
func (m *RulesChangedMessage) ToJSON() ([]byte, error)  { return json.Marshal(m) }
