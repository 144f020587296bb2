package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pmpv/internal/core"
)

// ResultComputedMessage announces a saved quarterly result. The worker
// loads the session itself; the figures are carried for logging and
// filtering only.
type ResultComputedMessage struct {
	ID         string          `json:"id"`
	SessionID  int64           `json:"session_id"`
	ResultID   int64           `json:"result_id"`
	PMPV       decimal.Decimal `json:"pmpv"`
	FinalPrice decimal.Decimal `json:"final_price"`
	ComputedAt time.Time       `json:"computed_at"`
	Timestamp  time.Time       `json:"timestamp"`
}

func NewResultComputedMessage(r core.StoredResult) *ResultComputedMessage {
	return &ResultComputedMessage{
		ID:         uuid.NewString(),
		SessionID:  r.SessionID,
		ResultID:   r.ID,
		PMPV:       r.PMPV,
		FinalPrice: r.FinalPrice,
		ComputedAt: r.ComputedAt,
		Timestamp:  time.Now(),
	}
}

func (m *ResultComputedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ResultComputedMessageFromJSON(data []byte) (*ResultComputedMessage, error) {
	var msg ResultComputedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
