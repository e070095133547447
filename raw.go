package aperturedb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gsaluja9/aperturedb-go/query"
)

// RawQuery sends a hand-written command array and returns the response
// JSON and blobs untouched. commands may be a JSON string, []byte,
// json.RawMessage or anything json.Marshal renders as an array.
func (c *Client) RawQuery(ctx context.Context, commands any, blobs [][]byte) (string, [][]byte, error) {
	var data []byte
	switch v := commands.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("aperturedb: marshal raw query: %w", err)
		}
		data = b
	}
	ops, err := query.RawCommands(data, blobs)
	if err != nil {
		return "", nil, err
	}
	q := query.New()
	for i, op := range ops {
		if _, err := q.Add(op); err != nil {
			return "", nil, fmt.Errorf("aperturedb: raw command %d: %w", i, err)
		}
	}
	doc, err := q.Build()
	if err != nil {
		return "", nil, err
	}
	raw, err := c.send(ctx, doc)
	if err != nil {
		return "", nil, err
	}
	return raw.JSON, raw.Blobs, nil
}
