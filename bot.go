package main

import (
	"fmt"
	"sync"

	"github.com/Seklfreak/mirrorbot/cache"
	"github.com/Seklfreak/mirrorbot/helpers"
	"github.com/Seklfreak/mirrorbot/metrics"
	"github.com/Seklfreak/mirrorbot/modules"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Bot routes gateway events to the modules
type Bot struct {
	gateway helpers.Gateway
	modules *modules.Modules
	prefix  string

	// guilds announced by READY, their GUILD_CREATE is not a join
	pendingGuildsMutex sync.Mutex
	pendingGuilds      map[string]bool
}

func NewBot(gateway helpers.Gateway, mods *modules.Modules, prefix string) *Bot {
	return &Bot{
		gateway: gateway,
		modules: mods,
		prefix:  prefix,

		pendingGuilds: make(map[string]bool),
	}
}

func (b *Bot) log() *logrus.Entry {
	return cache.GetLogger().WithField("module", "bot")
}

// OnConnect gets called when the gateway connection is established
func (b *Bot) OnConnect(session *discordgo.Session, event *discordgo.Connect) {
	b.log().Info("Connected, preparing...")
}

// OnDisconnect gets called when the gateway connection is lost
func (b *Bot) OnDisconnect(session *discordgo.Session, event *discordgo.Disconnect) {
	b.log().Warn("Bot has disconnected from discord.")
}

// OnReady gets called after the gateway connected
func (b *Bot) OnReady(session *discordgo.Session, event *discordgo.Ready) {
	b.log().Info(fmt.Sprintf("Bot has logged in as %s (#%s) and is ready!", event.User.Username, event.User.ID))
	b.expectGuilds(event.Guilds)

	err := session.UpdateCustomStatus(helpers.GetTextF("bot.presence", b.prefix))
	if err != nil {
		b.log().Warnf("setting presence failed: %s", err.Error())
	}
}

func (b *Bot) expectGuilds(guilds []*discordgo.Guild) {
	b.pendingGuildsMutex.Lock()
	defer b.pendingGuildsMutex.Unlock()

	for _, guild := range guilds {
		b.pendingGuilds[guild.ID] = true
	}
}

// joined reports whether a GUILD_CREATE for guildID is a new guild rather than
// one of the guilds of the current session becoming available.
func (b *Bot) joined(guildID string) bool {
	b.pendingGuildsMutex.Lock()
	defer b.pendingGuildsMutex.Unlock()

	if b.pendingGuilds[guildID] {
		delete(b.pendingGuilds, guildID)
		return false
	}
	return true
}

func (b *Bot) OnGuildCreate(session *discordgo.Session, guild *discordgo.GuildCreate) {
	if guild.Guild == nil {
		return
	}
	if !b.joined(guild.ID) {
		b.log().Debug(fmt.Sprintf("Guild %s (#%s) is available", guild.Name, guild.ID))
		return
	}
	b.log().Info(fmt.Sprintf("Joined guild %s (#%s)", guild.Name, guild.ID))
}

func (b *Bot) OnGuildDelete(session *discordgo.Session, guild *discordgo.GuildDelete) {
	if guild.Unavailable {
		b.log().Warn(fmt.Sprintf("Guild #%s became unavailable", guild.ID))
		return
	}

	b.modules.CallExtendedPluginOnGuildDelete(guild)
}

func (b *Bot) OnChannelDelete(session *discordgo.Session, channel *discordgo.ChannelDelete) {
	b.modules.CallExtendedPluginOnChannelDelete(channel)
}

// OnMessageCreate gets called after a new message was sent
// This will be called after *every* message on *every* server so it should die as soon as possible
// or spawn costly work inside of coroutines.
func (b *Bot) OnMessageCreate(session *discordgo.Session, message *discordgo.MessageCreate) {
	if message.Message == nil || message.Author == nil {
		return
	}
	metrics.MessagesReceived.Add(1)

	// Ignore other bots for commands, their messages are still mirrored
	if !message.Author.Bot {
		command, content, ok := modules.ParseCommand(message.Content, b.prefix, b.gateway.BotUserID())
		if ok {
			b.modules.CallBotPlugin(command, content, message.Message)
		}
	}

	b.modules.CallExtendedPlugin(message.Content, message.Message)
}

func (b *Bot) OnMessageUpdate(session *discordgo.Session, message *discordgo.MessageUpdate) {
	if message.Message == nil {
		return
	}
	b.modules.CallExtendedPluginOnMessageUpdate(message)
}

func (b *Bot) OnMessageDelete(session *discordgo.Session, message *discordgo.MessageDelete) {
	if message.Message == nil {
		return
	}
	b.modules.CallExtendedPluginOnMessageDelete(message)
}

func (b *Bot) OnMessageDeleteBulk(session *discordgo.Session, event *discordgo.MessageDeleteBulk) {
	b.modules.CallExtendedPluginOnMessageDeleteBulk(event)
}

// AddHandlers registers all event handlers of the bot on session
func (b *Bot) AddHandlers(session *discordgo.Session) {
	session.AddHandler(b.OnConnect)
	session.AddHandler(b.OnDisconnect)
	session.AddHandler(b.OnReady)
	session.AddHandler(b.OnGuildCreate)
	session.AddHandler(b.OnGuildDelete)
	session.AddHandler(b.OnChannelDelete)
	session.AddHandler(b.OnMessageCreate)
	session.AddHandler(b.OnMessageUpdate)
	session.AddHandler(b.OnMessageDelete)
	session.AddHandler(b.OnMessageDeleteBulk)
}
