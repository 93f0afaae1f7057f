package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainMutation separates mutation ids from any other hash in the system.
const DomainMutation = "billbook/mutation/v1"

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MutationID computes the content-addressed id of an outbox entry.
// The same mutation enqueued twice yields the same id, so the outbox
// insert can be idempotent.
func MutationID(userID string, collection Collection, action Action, recordID string, payload Object, seq int64) (string, error) {
	if payload == nil {
		payload = Object{}
	}
	canonical, err := MarshalCanonical(Object{
		"user_id":    String(userID),
		"collection": String(collection),
		"action":     String(action),
		"record_id":  String(recordID),
		"payload":    payload,
		"seq":        Int(seq),
	})
	if err != nil {
		return "", fmt.Errorf("mutation id: %w", err)
	}
	return hashWithDomain(DomainMutation, canonical), nil
}
