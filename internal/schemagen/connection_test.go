package schemagen

import (
	"testing"

	"model-graphql/internal/backend"
	"model-graphql/internal/cursor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []backend.Record {
	out := make([]backend.Record, n)
	for i := range out {
		out[i] = backend.Record{"id": string(rune('a' + i))}
	}
	return out
}

func connIDs(t *testing.T, conn map[string]interface{}) []string {
	t.Helper()
	edges := conn["edges"].([]map[string]interface{})
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e["node"].(backend.Record).ID())
	}
	return ids
}

func TestPaginate(t *testing.T) {
	const typeName = "ThingConnection"
	at := func(i int) string { return cursor.EncodeOffset(typeName, i) }

	tests := []struct {
		name     string
		args     map[string]interface{}
		want     []string
		hasNext  bool
		hasPrev  bool
		errMatch string
	}{
		{name: "all", args: map[string]interface{}{}, want: []string{"a", "b", "c", "d", "e"}},
		{name: "first", args: map[string]interface{}{"first": 2}, want: []string{"a", "b"}, hasNext: true},
		{name: "first covers rest", args: map[string]interface{}{"first": 10}, want: []string{"a", "b", "c", "d", "e"}},
		{name: "after", args: map[string]interface{}{"after": at(1), "first": 2}, want: []string{"c", "d"}, hasNext: true},
		{name: "before", args: map[string]interface{}{"before": at(3)}, want: []string{"a", "b", "c"}},
		{name: "last before", args: map[string]interface{}{"before": at(3), "last": 2}, want: []string{"b", "c"}, hasPrev: true},
		{name: "after and before", args: map[string]interface{}{"after": at(0), "before": at(4)}, want: []string{"b", "c", "d"}},
		{name: "after past end", args: map[string]interface{}{"after": at(9)}, want: []string{}},
		{name: "before not after after", args: map[string]interface{}{"after": at(3), "before": at(1)}, want: []string{}},
		{name: "first zero", args: map[string]interface{}{"first": 0}, want: []string{}, hasNext: true},
		{name: "negative first", args: map[string]interface{}{"first": -1}, errMatch: "first must be non-negative"},
		{name: "negative last", args: map[string]interface{}{"last": -1}, errMatch: "last must be non-negative"},
		{name: "garbage cursor", args: map[string]interface{}{"after": "???"}, errMatch: "invalid after cursor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, err := paginate(typeName, records(5), tt.args)
			if tt.errMatch != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, connIDs(t, conn))
			assert.Equal(t, 5, conn["totalCount"])
			pageInfo := conn["pageInfo"].(map[string]interface{})
			assert.Equal(t, tt.hasNext, pageInfo["hasNextPage"])
			assert.Equal(t, tt.hasPrev, pageInfo["hasPreviousPage"])
			if len(tt.want) == 0 {
				assert.Nil(t, pageInfo["startCursor"])
				assert.Nil(t, pageInfo["endCursor"])
			}
		})
	}
}

func TestSliceRecords(t *testing.T) {
	out, err := sliceRecords(records(5), map[string]interface{}{"skip": 2, "take": 2})
	require.NoError(t, err)
	assert.Equal(t, []backend.Record{{"id": "c"}, {"id": "d"}}, out)

	out, err = sliceRecords(records(5), map[string]interface{}{"skip": 3})
	require.NoError(t, err)
	assert.Len(t, out, 2)

	out, err = sliceRecords(records(5), map[string]interface{}{"take": 9})
	require.NoError(t, err)
	assert.Len(t, out, 5)

	out, err = sliceRecords(nil, map[string]interface{}{})
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)

	_, err = sliceRecords(records(5), map[string]interface{}{"take": -1})
	assert.Error(t, err)
}
