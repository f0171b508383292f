package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappingUnmarshalNumericIDs(t *testing.T) {
	var mappings []Mapping
	err := json.Unmarshal([]byte(`[
		{"source_channel": 801234567890123456, "source_guild": 701234567890123456,
		 "destination_channel": "901234567890123456",
		 "destination_webhook": "https://discord.com/api/webhooks/1/abc"}
	]`), &mappings)
	require.NoError(t, err)
	require.Len(t, mappings, 1)

	assert.Equal(t, "801234567890123456", mappings[0].SourceChannelID)
	assert.Equal(t, "701234567890123456", mappings[0].SourceGuildID)
	assert.Equal(t, "901234567890123456", mappings[0].DestinationChannelID)
	assert.Equal(t, "https://discord.com/api/webhooks/1/abc", mappings[0].DestinationWebhookURL)
}

func TestMappingMarshalUsesStrings(t *testing.T) {
	data, err := json.Marshal(Mapping{
		SourceGuildID:         "1",
		SourceChannelID:       "2",
		DestinationChannelID:  "3",
		DestinationWebhookURL: "url",
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"source_guild":"1","source_channel":"2","destination_channel":"3","destination_webhook":"url"}`,
		string(data))
}

func TestMappingPairs(t *testing.T) {
	a := Mapping{SourceChannelID: "1", DestinationChannelID: "2", DestinationWebhookURL: "x"}
	b := Mapping{SourceChannelID: "1", DestinationChannelID: "2", DestinationWebhookURL: "y"}
	c := Mapping{SourceChannelID: "2", DestinationChannelID: "1"}

	assert.True(t, a.SamePair(b))
	assert.False(t, a.SamePair(c))
	assert.True(t, a.References("1"))
	assert.True(t, a.References("2"))
	assert.False(t, a.References("3"))
}
