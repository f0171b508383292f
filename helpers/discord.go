package helpers

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
)

const (
	// MessageLengthLimit is the maximum length of a message's content
	MessageLengthLimit = 2000
	// WebhookUsernameLimit is the maximum length of a username sent through a webhook
	WebhookUsernameLimit = 80
)

var (
	channelMentionRegex = regexp.MustCompile(`^<#(\d+)>$`)
	snowflakeRegex      = regexp.MustCompile(`^\d+$`)
)

// HasPermission reports whether permissions contain permission, administrators have all of them
func HasPermission(permissions int64, permission int64) bool {
	if permissions&discordgo.PermissionAdministrator == discordgo.PermissionAdministrator {
		return true
	}
	return permissions&permission == permission
}

// MemberPermissions combines the @everyone role with all roles of member
func MemberPermissions(guildID string, roles []*discordgo.Role, member *discordgo.Member) (permissions int64) {
	memberRoles := make(map[string]bool, len(member.Roles))
	for _, roleID := range member.Roles {
		memberRoles[roleID] = true
	}

	for _, role := range roles {
		if role.ID == guildID || memberRoles[role.ID] {
			permissions |= role.Permissions
		}
	}
	return permissions
}

// ParseChannelMention extracts the channel ID from <#id> or a raw ID
func ParseChannelMention(mention string) (channelID string, ok bool) {
	mention = strings.TrimSpace(mention)
	if matches := channelMentionRegex.FindStringSubmatch(mention); len(matches) == 2 {
		return matches[1], true
	}
	if snowflakeRegex.MatchString(mention) {
		return mention, true
	}
	return "", false
}

// GetChannelFromMention resolves a channel mention or ID to a text channel
func GetChannelFromMention(gateway Gateway, mention string) (*discordgo.Channel, error) {
	channelID, ok := ParseChannelMention(mention)
	if !ok {
		return nil, NewError(ErrorKindInvalidTarget, "not a channel mention: "+mention)
	}

	channel, err := gateway.Channel(channelID)
	if err != nil {
		return nil, err
	}
	if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
		return nil, NewError(ErrorKindInvalidTarget, "not a text channel: "+channelID)
	}
	return channel, nil
}

// DisplayName returns the nickname of the author in the message's guild, the global name, or the username
func DisplayName(msg *discordgo.Message) string {
	if msg.Member != nil && msg.Member.Nick != "" {
		return msg.Member.Nick
	}
	if msg.Author == nil {
		return ""
	}
	if msg.Author.GlobalName != "" {
		return msg.Author.GlobalName
	}
	return msg.Author.Username
}

// LeftGuildName returns the name the guild had before the bot left it. The event itself
// only carries the guild ID.
func LeftGuildName(event *discordgo.GuildDelete) string {
	if event.BeforeDelete != nil && event.BeforeDelete.Name != "" {
		return event.BeforeDelete.Name
	}
	if event.Guild != nil && event.Guild.Name != "" {
		return event.Guild.Name
	}
	return "unknown"
}

// Truncate cuts text to at most limit runes
func Truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// Pagify splits text at delimiter into pages that fit into a single message
func Pagify(text string, delimiter string) []string {
	pages := make([]string, 0)
	page := ""
	for _, part := range strings.SplitAfter(text, delimiter) {
		if utf8.RuneCountInString(page)+utf8.RuneCountInString(part) > MessageLengthLimit {
			if page != "" {
				pages = append(pages, page)
			}
			page = ""
			for utf8.RuneCountInString(part) > MessageLengthLimit {
				runes := []rune(part)
				pages = append(pages, string(runes[:MessageLengthLimit]))
				part = string(runes[MessageLengthLimit:])
			}
		}
		page += part
	}
	if page != "" {
		pages = append(pages, page)
	}
	return pages
}
