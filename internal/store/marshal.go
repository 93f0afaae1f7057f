package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/billbook/internal/record"
)

// marshalRecords converts a collection to canonical JSON TEXT for storage.
func marshalRecords(records []record.Object) (string, error) {
	arr := make(record.Array, len(records))
	for i, r := range records {
		if r == nil {
			r = record.Object{}
		}
		arr[i] = r
	}
	data, err := record.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal records: %w", err)
	}
	return string(data), nil
}

// unmarshalRecords parses a stored collection. Numbers keep full precision.
func unmarshalRecords(data string) ([]record.Object, error) {
	if data == "" || data == "[]" {
		return []record.Object{}, nil
	}
	var out []record.Object
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal records: %w", err)
	}
	if out == nil {
		out = []record.Object{}
	}
	return out, nil
}

func marshalPayload(payload record.Object) (string, error) {
	if payload == nil {
		payload = record.Object{}
	}
	data, err := record.MarshalCanonical(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func unmarshalPayload(data string) (record.Object, error) {
	if data == "" || data == "{}" {
		return record.Object{}, nil
	}
	obj, err := record.ParseObject([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return obj, nil
}
