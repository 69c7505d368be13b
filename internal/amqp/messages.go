package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Operations carried by ExpenseChangedMessage.
const (
	OperationUpdate  = "update"
	OperationDelete  = "delete"
	OperationRefresh = "refresh"
)

var ErrInvalidMessage = errors.New("invalid expense changed message")

// ErrPermanent marks a handler error that retrying cannot fix. The consumer
// drops such deliveries instead of requeueing them.
var ErrPermanent = errors.New("permanent failure")

// ExpenseChangedMessage tells workers that the data of a user changed and
// their snapshot should be refreshed. It carries no expense data; consumers
// fetch the current state from the upstream API.
type ExpenseChangedMessage struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseChangedMessage creates a message with a fresh id.
func NewExpenseChangedMessage(userID, expenseID, operation string) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpenseID: expenseID,
		Operation: operation,
		Timestamp: time.Now().UTC(),
	}
}

// Validate requires a user and a known operation.
func (m *ExpenseChangedMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return errors.Join(ErrInvalidMessage, errors.New("missing user_id"))
	}
	switch m.Operation {
	case OperationUpdate, OperationDelete, OperationRefresh:
	default:
		return errors.Join(ErrInvalidMessage, errors.New("unknown operation "+m.Operation))
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes and validates a message.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
