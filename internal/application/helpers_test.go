package application

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// decodeJSON decodes the way the explorer client does, keeping json.Number.
func decodeJSON(t *testing.T, raw string) any {
	t.Helper()
	decoder := json.NewDecoder(bytes.NewBufferString(raw))
	decoder.UseNumber()
	var payload any
	require.NoError(t, decoder.Decode(&payload))
	return payload
}

func decodeItem(t *testing.T, raw string) Item {
	t.Helper()
	item, ok := decodeJSON(t, raw).(map[string]any)
	require.True(t, ok, "payload is not an object")
	return item
}
