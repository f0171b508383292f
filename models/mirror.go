package models

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
)

const (
	ConfigMappingsKey = "mappings"
	ConfigTokenKey    = "bot_token"
	ConfigPrefixKey   = "prefix"

	DefaultPrefix    = "mb!"
	TokenPlaceholder = "INSERT_BOT_TOKEN_HERE"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Mapping mirrors every message of SourceChannelID into DestinationChannelID
// through the webhook at DestinationWebhookURL.
type Mapping struct {
	SourceGuildID         string `json:"source_guild"`
	SourceChannelID       string `json:"source_channel"`
	DestinationChannelID  string `json:"destination_channel"`
	DestinationWebhookURL string `json:"destination_webhook"`
}

// SamePair reports whether both mappings connect the same source and destination.
func (m Mapping) SamePair(other Mapping) bool {
	return m.SourceChannelID == other.SourceChannelID &&
		m.DestinationChannelID == other.DestinationChannelID
}

// References reports whether channelID is the source or the destination of the mapping.
func (m Mapping) References(channelID string) bool {
	return m.SourceChannelID == channelID || m.DestinationChannelID == channelID
}

// UnmarshalJSON accepts IDs written as numbers as well as strings, older
// configs store snowflakes as plain numbers.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	var raw struct {
		SourceGuildID         jsoniter.RawMessage `json:"source_guild"`
		SourceChannelID       jsoniter.RawMessage `json:"source_channel"`
		DestinationChannelID  jsoniter.RawMessage `json:"destination_channel"`
		DestinationWebhookURL string              `json:"destination_webhook"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.SourceGuildID = snowflakeFromRaw(raw.SourceGuildID)
	m.SourceChannelID = snowflakeFromRaw(raw.SourceChannelID)
	m.DestinationChannelID = snowflakeFromRaw(raw.DestinationChannelID)
	m.DestinationWebhookURL = raw.DestinationWebhookURL
	return nil
}

func snowflakeFromRaw(raw jsoniter.RawMessage) string {
	value := strings.TrimSpace(string(raw))
	if value == "null" {
		return ""
	}
	return strings.Trim(value, `"`)
}
