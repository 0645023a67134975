package publisher

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, body string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()
	var out map[string]any
	require.NoError(t, dec.Decode(&out))
	return out
}

func TestFlattenPayload(t *testing.T) {
	payload := FlattenPayload(decode(t, `{
		"publisher_id": 12345,
		"name": "Example",
		"visit_enabled": true,
		"avg_cpu": 0.25,
		"categories": ["News", "Sports"],
		"owner_domain": null,
		"meta": {"a": 1},
		"mixed": [1, {"b": 2}]
	}`))

	assert.Equal(t, "12345", payload["publisher_id"])
	assert.Equal(t, "Example", payload["name"])
	assert.Equal(t, "true", payload["visit_enabled"])
	assert.Equal(t, "0.25", payload["avg_cpu"])
	assert.Equal(t, "News; Sports", payload["categories"])
	assert.Equal(t, "", payload["owner_domain"])
	assert.Equal(t, `{"a":1}`, payload["meta"])
	assert.Equal(t, `[1,{"b":2}]`, payload["mixed"])
}

func TestColumns_Order(t *testing.T) {
	results := []LookupResult{
		{State: StateSuccess, Payload: map[string]string{"zeta": "1", "name": "A", "alpha": "2"}},
		{State: StateTerminalFailure, Err: errors.New("boom")},
	}

	columns := Columns(results)

	require.Len(t, columns, len(Fields)+2+4)
	assert.Equal(t, Fields, columns[:len(Fields)])
	assert.Equal(t, []string{"alpha", "zeta"}, columns[len(Fields):len(Fields)+2])
	assert.Equal(t, []string{
		ColumnInputPublisherID,
		ColumnInputDomain,
		ColumnLookupStatus,
		ColumnLookupError,
	}, columns[len(Fields)+2:])
}

func TestRow_InputIdentifiersNotOverwritten(t *testing.T) {
	req, _ := NewLookupRequest(2, "a.com", "123")
	res := LookupResult{
		Request: req,
		State:   StateSuccess,
		Payload: map[string]string{
			"publisher_id": "777",
			"input_domain": "evil.com",
		},
	}

	header, rows := Aggregate([]LookupResult{res})
	require.Len(t, rows, 1)

	row := make(map[string]string)
	for i, col := range header {
		row[col] = rows[0][i]
	}

	assert.Equal(t, "a.com", row[ColumnInputDomain])
	assert.Equal(t, "123", row[ColumnInputPublisherID])
	assert.Equal(t, "777", row["publisher_id"])
	assert.Equal(t, "evil.com", row["response_input_domain"])
	assert.Equal(t, StatusSuccess, row[ColumnLookupStatus])
	assert.Equal(t, "", row[ColumnLookupError])
}

func TestRow_CollisionRenameStaysDistinct(t *testing.T) {
	req, _ := NewLookupRequest(1, "a.com", "")
	res := LookupResult{
		Request: req,
		State:   StateSuccess,
		Payload: map[string]string{
			"input_domain":          "renamed.com",
			"response_input_domain": "native.com",
		},
	}

	header := Columns([]LookupResult{res})
	assert.Contains(t, header, "response_input_domain")
	assert.Contains(t, header, "response_response_input_domain")

	want := Row(res, header)
	for i := 0; i < 200; i++ {
		require.Equal(t, want, Row(res, header), "row must not depend on map order")
	}

	row := make(map[string]string)
	for i, col := range header {
		row[col] = want[i]
	}
	assert.Equal(t, "native.com", row["response_input_domain"])
	assert.Equal(t, "renamed.com", row["response_response_input_domain"])
	assert.Equal(t, "a.com", row[ColumnInputDomain])
}

func TestAggregate_FailedRowKeepsIdentifiers(t *testing.T) {
	ok, _ := NewLookupRequest(2, "x.com", "")
	bad, _ := NewLookupRequest(3, "", "999")

	results := []LookupResult{
		{Request: ok, State: StateSuccess, Payload: map[string]string{"score": "10"}},
		{Request: bad, State: StateTerminalFailure, Err: errors.New("status 404")},
	}

	header, rows := Aggregate(results)
	require.Len(t, rows, 2)

	index := make(map[string]int)
	for i, col := range header {
		index[col] = i
	}

	assert.Equal(t, "10", rows[0][index["score"]])
	assert.Equal(t, "x.com", rows[0][index[ColumnInputDomain]])
	assert.Equal(t, StatusSuccess, rows[0][index[ColumnLookupStatus]])

	assert.Equal(t, "", rows[1][index["score"]])
	assert.Equal(t, "999", rows[1][index[ColumnInputPublisherID]])
	assert.Equal(t, StatusFailed, rows[1][index[ColumnLookupStatus]])
	assert.Equal(t, "status 404", rows[1][index[ColumnLookupError]])
	for _, field := range Fields {
		assert.Empty(t, rows[1][index[field]], "field %s should be empty", field)
	}
}
