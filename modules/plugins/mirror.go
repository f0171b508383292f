package plugins

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/Seklfreak/mirrorbot/cache"
	"github.com/Seklfreak/mirrorbot/helpers"
	"github.com/Seklfreak/mirrorbot/metrics"
	"github.com/Seklfreak/mirrorbot/models"
	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize/english"
	"github.com/getsentry/raven-go"
	"github.com/sirupsen/logrus"
)

// Mirror forwards messages of source channels to their destination channels and keeps
// the copies in sync. It also provides the add, remove and list commands.
type Mirror struct {
	gateway  helpers.Gateway
	store    *helpers.MappingStore
	webhooks *helpers.WebhookManager
	messages *cache.MirroredMessages
}

type mirrorAttachment struct {
	name        string
	contentType string
	data        []byte
}

func NewMirror(gateway helpers.Gateway, store *helpers.MappingStore, webhooks *helpers.WebhookManager, messages *cache.MirroredMessages) *Mirror {
	return &Mirror{
		gateway:  gateway,
		store:    store,
		webhooks: webhooks,
		messages: messages,
	}
}

func (m *Mirror) Commands() []string {
	return []string{
		"add",
		"remove",
		"list",
	}
}

func (m *Mirror) Init() {
	metrics.MirrorsMappings.Set(int64(m.store.Len()))
	m.logger().Infof("loaded %d mirrors", m.store.Len())
}

func (m *Mirror) Uninit() {
}

func (m *Mirror) logger() *logrus.Entry {
	return cache.GetLogger().WithField("module", "mirror")
}

func (m *Mirror) Action(command string, content string, msg *discordgo.Message) {
	var err error
	switch command {
	case "add": // [p]add <#source> <#destination>
		err = m.actionAdd(content, msg)
	case "remove": // [p]remove <#source> <#destination>
		err = m.actionRemove(content, msg)
	case "list": // [p]list
		err = m.actionList(msg)
	}

	if err != nil {
		m.logCommandError(command, msg, err)
	}
}

func (m *Mirror) actionAdd(content string, msg *discordgo.Message) error {
	if msg.GuildID == "" {
		m.send(msg.ChannelID, helpers.GetText("bot.errors.no-guild"))
		return helpers.NewError(helpers.ErrorKindNotInGuild, "add used in private messages")
	}
	if !m.gateway.HasManageGuild(msg.Author.ID, msg.GuildID) {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-no-permission"))
		return helpers.NewError(helpers.ErrorKindPermissionDenied, "manage guild permission missing")
	}

	args := strings.Fields(content)
	if len(args) < 2 {
		m.send(msg.ChannelID, helpers.GetText("bot.arguments.too-few"))
		return nil
	}

	source, err := helpers.GetChannelFromMention(m.gateway, args[0])
	if err != nil {
		m.send(msg.ChannelID, helpers.GetText("bot.arguments.invalid"))
		return err
	}
	destination, err := helpers.GetChannelFromMention(m.gateway, args[1])
	if err != nil {
		m.send(msg.ChannelID, helpers.GetText("bot.arguments.invalid"))
		return err
	}
	if source.GuildID != msg.GuildID {
		m.send(msg.ChannelID, helpers.GetText("bot.arguments.invalid"))
		return helpers.NewError(helpers.ErrorKindInvalidTarget, "source channel #"+source.ID+" is not part of this guild")
	}

	if source.ID == destination.ID {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-same-channel"))
		return helpers.NewError(helpers.ErrorKindSameChannel, "source and destination are #"+source.ID)
	}

	if !m.gateway.HasManageWebhooks(m.gateway.BotUserID(), destination.ID) ||
		(destination.GuildID != msg.GuildID && !m.gateway.HasManageWebhooks(msg.Author.ID, destination.ID)) {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-missing-webhook-permission"))
		return helpers.NewError(helpers.ErrorKindPermissionDenied, "manage webhooks permission missing for #"+destination.ID)
	}

	if m.store.Exists(source.ID, destination.ID) {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-already-exists"))
		return helpers.NewError(helpers.ErrorKindDuplicateMapping, "mapping from #"+source.ID+" to #"+destination.ID+" already exists")
	}

	handle, err := m.webhooks.Create(destination.ID, helpers.GetTextF("plugins.mirror.reason-add", source.Name, destination.Name))
	if err != nil {
		if helpers.KindOf(err) == helpers.ErrorKindPermissionDenied {
			m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-webhook-forbidden"))
		} else {
			m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-webhook-failed"))
		}
		return err
	}

	err = m.store.Add(models.Mapping{
		SourceGuildID:         source.GuildID,
		SourceChannelID:       source.ID,
		DestinationChannelID:  destination.ID,
		DestinationWebhookURL: handle.URL(),
	})
	if err != nil {
		deleteErr := m.webhooks.Delete(handle, helpers.GetTextF("plugins.mirror.reason-remove", source.Name, destination.Name))
		if deleteErr != nil {
			m.logger().WithField("channelID", destination.ID).Warnf("deleting unused webhook failed: %s", deleteErr.Error())
		}

		if helpers.KindOf(err) == helpers.ErrorKindDuplicateMapping {
			m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-already-exists"))
		} else {
			m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-save-failed"))
		}
		return err
	}
	metrics.MirrorsMappings.Set(int64(m.store.Len()))

	m.send(msg.ChannelID, helpers.GetText("plugins.mirror.add-success"))
	m.logger().Info(fmt.Sprintf("Mapping added for guild #%s by %s (#%s): #%s (#%s) to #%s (#%s)",
		msg.GuildID, msg.Author.Username, msg.Author.ID, source.Name, source.ID, destination.Name, destination.ID))
	return nil
}

func (m *Mirror) actionRemove(content string, msg *discordgo.Message) error {
	if msg.GuildID == "" {
		m.send(msg.ChannelID, helpers.GetText("bot.errors.no-guild"))
		return helpers.NewError(helpers.ErrorKindNotInGuild, "remove used in private messages")
	}
	if !m.gateway.HasManageGuild(msg.Author.ID, msg.GuildID) {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.remove-no-permission"))
		return helpers.NewError(helpers.ErrorKindPermissionDenied, "manage guild permission missing")
	}

	args := strings.Fields(content)
	if len(args) < 2 {
		m.send(msg.ChannelID, helpers.GetText("bot.arguments.too-few"))
		return nil
	}

	// channels of broken mirrors might be gone already, raw IDs are enough here
	sourceID, sourceOK := helpers.ParseChannelMention(args[0])
	destinationID, destinationOK := helpers.ParseChannelMention(args[1])
	if !sourceOK || !destinationOK {
		m.send(msg.ChannelID, helpers.GetText("bot.arguments.invalid"))
		return helpers.NewError(helpers.ErrorKindInvalidTarget, "invalid channel arguments: "+content)
	}

	matches := func(mapping models.Mapping) bool {
		return mapping.SourceGuildID == msg.GuildID &&
			mapping.SourceChannelID == sourceID &&
			mapping.DestinationChannelID == destinationID
	}

	reason := helpers.GetTextF("plugins.mirror.reason-remove", m.channelName(sourceID), m.channelName(destinationID))
	for _, mapping := range m.store.Filter(matches) {
		err := m.webhooks.DeleteURL(mapping.DestinationChannelID, mapping.DestinationWebhookURL, reason)
		if err == nil {
			continue
		}
		if helpers.KindOf(err) == helpers.ErrorKindPermissionDenied {
			m.send(msg.ChannelID, helpers.GetText("plugins.mirror.remove-webhook-forbidden"))
		} else {
			m.send(msg.ChannelID, helpers.GetText("plugins.mirror.remove-webhook-failed"))
		}
		return err
	}

	removed, err := m.store.RemoveWhere(matches)
	if err != nil {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.remove-save-failed"))
		return err
	}
	metrics.MirrorsMappings.Set(int64(m.store.Len()))

	m.send(msg.ChannelID, helpers.GetTextF("plugins.mirror.remove-success", english.Plural(len(removed), "mirror", "")))
	m.logger().Info(fmt.Sprintf("Mapping removed for guild #%s by %s (#%s): #%s to #%s, %d removed",
		msg.GuildID, msg.Author.Username, msg.Author.ID, sourceID, destinationID, len(removed)))
	return nil
}

func (m *Mirror) actionList(msg *discordgo.Message) error {
	if msg.GuildID == "" {
		m.send(msg.ChannelID, helpers.GetText("bot.errors.no-guild"))
		return helpers.NewError(helpers.ErrorKindNotInGuild, "list used in private messages")
	}
	if !m.gateway.HasManageGuild(msg.Author.ID, msg.GuildID) {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.list-no-permission"))
		return helpers.NewError(helpers.ErrorKindPermissionDenied, "manage guild permission missing")
	}

	mappings := m.store.FindByGuild(msg.GuildID)
	if len(mappings) == 0 {
		m.send(msg.ChannelID, helpers.GetText("plugins.mirror.list-empty"))
		return nil
	}

	guildName := msg.GuildID
	if guild, err := m.gateway.Guild(msg.GuildID); err == nil {
		guildName = guild.Name
	}

	var text strings.Builder
	text.WriteString(helpers.GetTextF("plugins.mirror.list-header", guildName))
	for _, mapping := range mappings {
		text.WriteString("\n")
		text.WriteString(helpers.GetTextF("plugins.mirror.list-entry", mapping.SourceChannelID, mapping.DestinationChannelID))
	}

	for _, page := range helpers.Pagify(text.String(), "\n") {
		m.send(msg.ChannelID, page)
	}
	m.logger().Infof("listed %d mirrors in guild #%s", len(mappings), msg.GuildID)
	return nil
}

// OnMessage forwards msg to every destination of its channel, one mapping after another.
func (m *Mirror) OnMessage(content string, msg *discordgo.Message) {
	if msg.Author == nil || msg.Author.ID == m.gateway.BotUserID() {
		return
	}
	// copies posted by our own webhooks must not travel on through chained mirrors
	if msg.WebhookID != "" && m.store.OwnsWebhook(msg.WebhookID) {
		return
	}

	mappings := m.store.FindBySource(msg.ChannelID)
	if len(mappings) == 0 {
		return
	}
	if msg.Content == "" && len(msg.Attachments) == 0 && len(msg.Embeds) == 0 {
		m.logger().WithField("messageID", msg.ID).Debug("nothing to forward")
		return
	}

	sourceName := m.channelName(msg.ChannelID)
	attachments, err := m.downloadAttachments(msg)

	for _, mapping := range mappings {
		forwardErr := err
		if forwardErr == nil {
			forwardErr = m.forward(msg, mapping, sourceName, attachments)
		}
		if forwardErr != nil {
			m.handleForwardError(msg, mapping, forwardErr)
			continue
		}
		metrics.MirrorsPostsSent.Add(1)
	}
}

func (m *Mirror) downloadAttachments(msg *discordgo.Message) ([]mirrorAttachment, error) {
	attachments := make([]mirrorAttachment, 0, len(msg.Attachments))
	for _, attachment := range msg.Attachments {
		data, err := m.gateway.AttachmentBytes(attachment)
		if err != nil {
			return nil, err
		}
		contentType := attachment.ContentType
		if contentType == "" {
			contentType = helpers.SniffMime(data)
		}
		attachments = append(attachments, mirrorAttachment{
			// spoilers are marked by the SPOILER_ filename prefix, keeping the name keeps the flag
			name:        attachment.Filename,
			contentType: contentType,
			data:        data,
		})
	}
	return attachments, nil
}

func (m *Mirror) forward(msg *discordgo.Message, mapping models.Mapping, sourceName string, attachments []mirrorAttachment) error {
	handle, err := m.webhooks.Resolve(mapping.DestinationChannelID, mapping.DestinationWebhookURL)
	if err != nil {
		return err
	}

	files := make([]*discordgo.File, 0, len(attachments))
	for _, attachment := range attachments {
		files = append(files, &discordgo.File{
			Name:        attachment.name,
			ContentType: attachment.contentType,
			Reader:      bytes.NewReader(attachment.data),
		})
	}

	m.logger().WithFields(logrus.Fields{
		"messageID":            msg.ID,
		"sourceChannelID":      mapping.SourceChannelID,
		"destinationChannelID": mapping.DestinationChannelID,
	}).Debug("forwarding message")

	mirrored, err := m.webhooks.Execute(handle, &discordgo.WebhookParams{
		Content: msg.Content,
		Username: helpers.Truncate(
			helpers.GetTextF("plugins.mirror.webhook-username", helpers.DisplayName(msg), sourceName),
			helpers.WebhookUsernameLimit,
		),
		AvatarURL: msg.Author.AvatarURL(""),
		Files:     files,
		Embeds:    msg.Embeds,
	})
	if err != nil {
		return err
	}
	if mirrored == nil {
		return helpers.NewError(helpers.ErrorKindPlatform, "webhook returned no message")
	}

	m.messages.Record(msg.ID, messageCreatedAt(msg), cache.MirroredMessage{
		ChannelID:    mapping.DestinationChannelID,
		MessageID:    mirrored.ID,
		WebhookID:    handle.ID,
		WebhookToken: handle.Token,
	})
	return nil
}

func (m *Mirror) handleForwardError(msg *discordgo.Message, mapping models.Mapping, err error) {
	metrics.MirrorsPostsFailed.Add(1)

	kind := helpers.KindOf(err)
	m.logger().WithFields(logrus.Fields{
		"messageID":            msg.ID,
		"sourceChannelID":      mapping.SourceChannelID,
		"destinationChannelID": mapping.DestinationChannelID,
		"kind":                 kind.String(),
	}).Warnf("forwarding message failed: %s", err.Error())

	var text string
	switch kind {
	case helpers.ErrorKindInvalidTarget, helpers.ErrorKindPermissionDenied:
		m.webhooks.Forget(mapping.DestinationChannelID)
		text = helpers.GetTextF("plugins.mirror.forward-failed-recreate", mapping.DestinationChannelID)
	default:
		text = helpers.GetTextF("plugins.mirror.forward-failed-reason", mapping.DestinationChannelID, helpers.Describe(err))
	}

	var sendErr error
	if m.gateway.SupportsReply() {
		_, sendErr = m.gateway.ChannelMessageSendReply(msg.ChannelID, text, msg.Reference())
	} else {
		_, sendErr = m.gateway.ChannelMessageSend(msg.ChannelID, text)
	}
	if sendErr != nil {
		m.logger().WithField("channelID", msg.ChannelID).Debugf("failure notification dropped: %s", sendErr.Error())
	}
}

// OnMessageUpdate replays an edit onto all mirrored copies of the message.
func (m *Mirror) OnMessageUpdate(msg *discordgo.MessageUpdate) {
	if msg.Message == nil {
		return
	}
	mirrored, ok := m.messages.Lookup(msg.ID)
	if !ok {
		return
	}

	for _, mirroredCopy := range mirrored {
		err := m.webhooks.EditMessage(handleOf(mirroredCopy), mirroredCopy.MessageID, msg.Content, msg.Embeds)
		if err != nil {
			m.logPropagationError("edit", mirroredCopy, err)
			continue
		}
		metrics.MirrorsEditsSent.Add(1)
	}
}

// OnMessageDelete deletes all mirrored copies of the message.
func (m *Mirror) OnMessageDelete(msg *discordgo.MessageDelete) {
	if msg.Message == nil {
		return
	}
	m.deleteMirrored(msg.ID)
}

// OnMessageDeleteBulk deletes all mirrored copies of every deleted message.
func (m *Mirror) OnMessageDeleteBulk(event *discordgo.MessageDeleteBulk) {
	for _, messageID := range event.Messages {
		m.deleteMirrored(messageID)
	}
}

// deleteMirrored keeps taking the entry until it is gone, copies still being forwarded
// while the deletes run are recorded into a new entry.
func (m *Mirror) deleteMirrored(originalID string) {
	for {
		mirrored, ok := m.messages.Take(originalID)
		if !ok {
			return
		}

		for _, mirroredCopy := range mirrored {
			err := m.webhooks.DeleteMessage(handleOf(mirroredCopy), mirroredCopy.MessageID)
			if err != nil {
				m.logPropagationError("delete", mirroredCopy, err)
				continue
			}
			metrics.MirrorsDeletesSent.Add(1)
		}
	}
}

func (m *Mirror) logPropagationError(action string, mirroredCopy cache.MirroredMessage, err error) {
	entry := m.logger().WithFields(logrus.Fields{
		"channelID": mirroredCopy.ChannelID,
		"messageID": mirroredCopy.MessageID,
	})
	if helpers.IsSuppressible(err) {
		entry.Debugf("%s of mirrored message skipped: %s", action, err.Error())
		return
	}
	entry.Warnf("%s of mirrored message failed: %s", action, err.Error())
}

// OnChannelDelete removes every mirror from or to the deleted channel, deleting their webhooks first.
func (m *Mirror) OnChannelDelete(event *discordgo.ChannelDelete) {
	if event.Channel == nil {
		return
	}
	channel := event.Channel

	references := func(mapping models.Mapping) bool {
		return mapping.References(channel.ID)
	}

	affected := m.store.Filter(references)
	if len(affected) == 0 {
		return
	}

	name := func(channelID string) string {
		if channelID == channel.ID && channel.Name != "" {
			return channel.Name
		}
		return m.channelName(channelID)
	}

	for _, mapping := range affected {
		reasonID := "plugins.mirror.reason-destination-deleted"
		if mapping.SourceChannelID == channel.ID {
			reasonID = "plugins.mirror.reason-source-deleted"
		}
		reason := helpers.GetTextF(reasonID, name(mapping.SourceChannelID), name(mapping.DestinationChannelID))

		err := m.webhooks.DeleteURL(mapping.DestinationChannelID, mapping.DestinationWebhookURL, reason)
		if err != nil {
			m.logger().WithField("channelID", mapping.DestinationChannelID).Debugf("deleting webhook failed: %s", err.Error())
		}
	}

	removed, err := m.store.RemoveWhere(references)
	if err != nil {
		m.logger().WithField("channelID", channel.ID).Errorf("removing mirrors of deleted channel failed: %s", err.Error())
		return
	}
	metrics.MirrorsMappings.Set(int64(m.store.Len()))

	m.logger().Info(fmt.Sprintf("Channel #%s (#%s) deleted. Removed %s.",
		channel.Name, channel.ID, english.Plural(len(removed), "mapping", "")))
}

// OnGuildDelete removes the mirrors of a guild the bot has been removed from. The webhooks
// are out of reach at this point and stay where they are.
func (m *Mirror) OnGuildDelete(event *discordgo.GuildDelete) {
	if event.Guild == nil || event.Unavailable {
		return
	}
	guild := event.Guild

	removed, err := m.store.RemoveWhere(func(mapping models.Mapping) bool {
		return mapping.SourceGuildID == guild.ID
	})
	if err != nil {
		m.logger().WithField("guildID", guild.ID).Errorf("removing mirrors of left guild failed: %s", err.Error())
		return
	}
	metrics.MirrorsMappings.Set(int64(m.store.Len()))

	m.logger().Info(fmt.Sprintf("Left guild %s (#%s). Removed %s.",
		helpers.LeftGuildName(event), guild.ID, english.Plural(len(removed), "mapping", "")))
}

func (m *Mirror) channelName(channelID string) string {
	channel, err := m.gateway.Channel(channelID)
	if err != nil || channel.Name == "" {
		return channelID
	}
	return channel.Name
}

func (m *Mirror) send(channelID, content string) {
	_, err := m.gateway.ChannelMessageSend(channelID, content)
	if err != nil {
		m.logger().WithField("channelID", channelID).Warnf("sending message failed: %s", err.Error())
	}
}

func (m *Mirror) logCommandError(command string, msg *discordgo.Message, err error) {
	entry := m.logger().WithFields(logrus.Fields{
		"command":   command,
		"guildID":   msg.GuildID,
		"channelID": msg.ChannelID,
	})

	if helpers.KindOf(err) == helpers.ErrorKindUnknown {
		entry.Error(err.Error())
		raven.CaptureError(err, map[string]string{
			"Command":   command,
			"GuildID":   msg.GuildID,
			"ChannelID": msg.ChannelID,
		})
		return
	}
	entry.Infof("command failed: %s", err.Error())
}

func handleOf(mirroredCopy cache.MirroredMessage) helpers.WebhookHandle {
	return helpers.WebhookHandle{
		ID:        mirroredCopy.WebhookID,
		Token:     mirroredCopy.WebhookToken,
		ChannelID: mirroredCopy.ChannelID,
	}
}

func messageCreatedAt(msg *discordgo.Message) time.Time {
	if !msg.Timestamp.IsZero() {
		return msg.Timestamp
	}
	if createdAt, err := discordgo.SnowflakeTimestamp(msg.ID); err == nil {
		return createdAt
	}
	return time.Now()
}
