package providers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexFloat(t *testing.T) {
	var payload struct {
		Values []flexFloat `json:"values"`
	}
	raw := `{"values": [1.5, null, "2.25", "NaN", "Infinity", "n/a", -3, true, {}]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	require.Len(t, payload.Values, 9)

	assert.Equal(t, 1.5, *payload.Values[0].Ptr())
	assert.Nil(t, payload.Values[1].Ptr())
	assert.Equal(t, 2.25, *payload.Values[2].Ptr())
	assert.Nil(t, payload.Values[3].Ptr())
	assert.Nil(t, payload.Values[4].Ptr())
	assert.Nil(t, payload.Values[5].Ptr())
	assert.Equal(t, -3.0, *payload.Values[6].Ptr())
	assert.Nil(t, payload.Values[7].Ptr())
	assert.Nil(t, payload.Values[8].Ptr())

	assert.Nil(t, at(payload.Values, 42))
	assert.Nil(t, at(payload.Values, -1))
	assert.Equal(t, 1.5, *at(payload.Values, 0))
}
