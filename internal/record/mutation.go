package record

import "fmt"

// Action is the kind of write a mutation performs.
type Action string

const (
	ActionInsert Action = "insert"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Valid reports whether a is one of the three known actions.
func (a Action) Valid() bool {
	return a == ActionInsert || a == ActionUpdate || a == ActionDelete
}

// Mutation is one write against a collection, kept as a value so it can be
// applied to the in-memory projection, parked in the outbox and replayed.
type Mutation struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Collection Collection `json:"collection"`
	Action     Action     `json:"action"`
	RecordID   string     `json:"record_id"`
	Payload    Object     `json:"payload"`
	Seq        int64      `json:"seq"`
}

// NewMutation builds a mutation and stamps its content-addressed id.
func NewMutation(userID string, collection Collection, action Action, recordID string, payload Object, seq int64) (Mutation, error) {
	if !action.Valid() {
		return Mutation{}, fmt.Errorf("new mutation: unknown action %q", action)
	}
	if recordID == "" {
		return Mutation{}, fmt.Errorf("new mutation: empty record id")
	}
	if payload == nil {
		payload = Object{}
	}
	id, err := MutationID(userID, collection, action, recordID, payload, seq)
	if err != nil {
		return Mutation{}, err
	}
	return Mutation{
		ID:         id,
		UserID:     userID,
		Collection: collection,
		Action:     action,
		RecordID:   recordID,
		Payload:    payload,
		Seq:        seq,
	}, nil
}
