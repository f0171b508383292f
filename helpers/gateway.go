package helpers

import (
	"github.com/bwmarrin/discordgo"
)

// Gateway is everything the mirror needs from the chat platform.
// Errors returned by implementations should carry an ErrorKind, see ClassifyError.
type Gateway interface {
	BotUserID() string
	// SupportsReply is resolved once, when the gateway is created.
	SupportsReply() bool

	Channel(channelID string) (*discordgo.Channel, error)
	Guild(guildID string) (*discordgo.Guild, error)

	ChannelMessageSend(channelID, content string) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference) (*discordgo.Message, error)

	ChannelWebhooks(channelID string) ([]*discordgo.Webhook, error)
	WebhookCreate(channelID, name, reason string) (*discordgo.Webhook, error)
	WebhookDelete(webhookID, token, reason string) error
	// WebhookExecute always waits for the created message.
	WebhookExecute(webhookID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error)
	WebhookMessageEdit(webhookID, token, messageID string, edit *discordgo.WebhookEdit) error
	WebhookMessageDelete(webhookID, token, messageID string) error

	AttachmentBytes(attachment *discordgo.MessageAttachment) ([]byte, error)

	HasManageWebhooks(userID, channelID string) bool
	HasManageGuild(userID, guildID string) bool
}

// DiscordGateway implements Gateway on top of a discordgo session.
type DiscordGateway struct {
	session       *discordgo.Session
	supportsReply bool
	downloader    *Downloader
}

func NewDiscordGateway(session *discordgo.Session, downloader *Downloader) *DiscordGateway {
	return &DiscordGateway{
		session: session,
		// message references are part of every API version discordgo speaks
		supportsReply: true,
		downloader:    downloader,
	}
}

func (g *DiscordGateway) BotUserID() string {
	if g.session.State == nil || g.session.State.User == nil {
		return ""
	}
	return g.session.State.User.ID
}

func (g *DiscordGateway) SupportsReply() bool {
	return g.supportsReply
}

// Channel returns the channel from the state cache, asking the API if it is not cached.
func (g *DiscordGateway) Channel(channelID string) (*discordgo.Channel, error) {
	if channel, err := g.session.State.Channel(channelID); err == nil {
		return channel, nil
	}
	channel, err := g.session.Channel(channelID)
	return channel, ClassifyError(err)
}

func (g *DiscordGateway) Guild(guildID string) (*discordgo.Guild, error) {
	if guild, err := g.session.State.Guild(guildID); err == nil {
		return guild, nil
	}
	guild, err := g.session.Guild(guildID)
	return guild, ClassifyError(err)
}

func (g *DiscordGateway) ChannelMessageSend(channelID, content string) (*discordgo.Message, error) {
	message, err := g.session.ChannelMessageSend(channelID, content)
	return message, ClassifyError(err)
}

func (g *DiscordGateway) ChannelMessageSendReply(channelID, content string, reference *discordgo.MessageReference) (*discordgo.Message, error) {
	message, err := g.session.ChannelMessageSendReply(channelID, content, reference)
	return message, ClassifyError(err)
}

func (g *DiscordGateway) ChannelWebhooks(channelID string) ([]*discordgo.Webhook, error) {
	webhooks, err := g.session.ChannelWebhooks(channelID)
	return webhooks, ClassifyError(err)
}

func (g *DiscordGateway) WebhookCreate(channelID, name, reason string) (*discordgo.Webhook, error) {
	webhook, err := g.session.WebhookCreate(channelID, name, "", discordgo.WithAuditLogReason(reason))
	return webhook, ClassifyError(err)
}

func (g *DiscordGateway) WebhookDelete(webhookID, token, reason string) error {
	_, err := g.session.WebhookDeleteWithToken(webhookID, token, discordgo.WithAuditLogReason(reason))
	return ClassifyError(err)
}

func (g *DiscordGateway) WebhookExecute(webhookID, token string, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	message, err := g.session.WebhookExecute(webhookID, token, true, params)
	return message, ClassifyError(err)
}

func (g *DiscordGateway) WebhookMessageEdit(webhookID, token, messageID string, edit *discordgo.WebhookEdit) error {
	_, err := g.session.WebhookMessageEdit(webhookID, token, messageID, edit)
	return ClassifyError(err)
}

func (g *DiscordGateway) WebhookMessageDelete(webhookID, token, messageID string) error {
	return ClassifyError(g.session.WebhookMessageDelete(webhookID, token, messageID))
}

func (g *DiscordGateway) AttachmentBytes(attachment *discordgo.MessageAttachment) ([]byte, error) {
	data, err := g.downloader.Get(attachment.URL)
	if err != nil {
		return nil, WrapError(ErrorKindPlatform, err, "downloading attachment "+attachment.Filename)
	}
	return data, nil
}

// HasManageWebhooks checks the channel permissions of userID, administrators always pass.
func (g *DiscordGateway) HasManageWebhooks(userID, channelID string) bool {
	permissions, err := g.session.State.UserChannelPermissions(userID, channelID)
	if err != nil {
		permissions, err = g.session.UserChannelPermissions(userID, channelID)
		if err != nil {
			return false
		}
	}
	return HasPermission(permissions, discordgo.PermissionManageWebhooks)
}

// HasManageGuild checks the guild wide permissions of userID, the owner and administrators always pass.
func (g *DiscordGateway) HasManageGuild(userID, guildID string) bool {
	if guildID == "" {
		return false
	}

	guild, err := g.Guild(guildID)
	if err != nil {
		return false
	}

	member, err := g.session.State.Member(guildID, userID)
	if err != nil {
		member, err = g.session.GuildMember(guildID, userID)
		if err != nil {
			return false
		}
	}

	roles := guild.Roles
	if len(roles) == 0 {
		roles, err = g.session.GuildRoles(guildID)
		if err != nil {
			return false
		}
	}

	if guild.OwnerID == userID {
		return true
	}
	return HasPermission(MemberPermissions(guildID, roles, member), discordgo.PermissionManageServer)
}
