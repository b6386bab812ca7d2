package spotsync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpotRecordDecode(t *testing.T) {
	raw := `{"count":4,"items":[
		{"id":1,"name":"A","lat":35.1,"lng":139.1,"is_special":true},
		{"id":"2","name":"B","lat":35.2,"lng":139.2,"is_special":0},
		{"id":3,"name":"C","lat":35.3,"lng":139.3,"is_special":"1","address":"x"},
		{"id":4,"name":"D","lat":35.4,"lng":139.4}
	]}`
	var page SpotPage
	require.NoError(t, json.Unmarshal([]byte(raw), &page))
	require.Len(t, page.Items, 4)
	assert.Equal(t, 4, page.Count)

	assert.Equal(t, SpotID("1"), page.Items[0].ID)
	assert.True(t, page.Items[0].IsSpecial)
	assert.Equal(t, SpotID("2"), page.Items[1].ID)
	assert.False(t, page.Items[1].IsSpecial)
	assert.True(t, page.Items[2].IsSpecial)
	assert.Equal(t, "x", page.Items[2].Address)
	assert.False(t, page.Items[3].IsSpecial)
}

func TestSpotRecordCamelCaseFlag(t *testing.T) {
	raw := `[
		{"id":1,"name":"A","lat":35.1,"lng":139.1,"isSpecial":true},
		{"id":2,"name":"B","lat":35.2,"lng":139.2,"isSpecial":"0"},
		{"id":3,"name":"C","lat":35.3,"lng":139.3,"isSpecial":1,"is_special":false}
	]`
	var spots []SpotRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &spots))
	require.Len(t, spots, 3)
	assert.True(t, spots[0].IsSpecial)
	assert.False(t, spots[1].IsSpecial)
	assert.True(t, spots[2].IsSpecial)
}

func TestFlagDecode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{`true`, true},
		{`false`, false},
		{`1`, true},
		{`0`, false},
		{`"true"`, true},
		{`"0"`, false},
		{`null`, false},
		{`2`, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f Flag
			require.NoError(t, json.Unmarshal([]byte(tt.in), &f))
			assert.Equal(t, tt.want, bool(f))
		})
	}

	var f Flag
	assert.Error(t, json.Unmarshal([]byte(`"maybe"`), &f))
}

func TestSpotIDDecode(t *testing.T) {
	var ids []SpotID
	require.NoError(t, json.Unmarshal([]byte(`[12, "ab", 1e3, null]`), &ids))
	assert.Equal(t, []SpotID{"12", "ab", "1e3", ""}, ids)
}
