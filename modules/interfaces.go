package modules

import "github.com/bwmarrin/discordgo"

type Plugin interface {
	Commands() []string

	Init()

	Action(
		command string,
		content string,
		msg *discordgo.Message,
	)
}

type ExtendedPlugin interface {
	Commands() []string

	Init()

	Uninit()

	Action(
		command string,
		content string,
		msg *discordgo.Message,
	)

	OnMessage(
		content string,
		msg *discordgo.Message,
	)

	OnMessageUpdate(
		msg *discordgo.MessageUpdate,
	)

	OnMessageDelete(
		msg *discordgo.MessageDelete,
	)

	OnMessageDeleteBulk(
		event *discordgo.MessageDeleteBulk,
	)

	OnChannelDelete(
		event *discordgo.ChannelDelete,
	)

	OnGuildDelete(
		event *discordgo.GuildDelete,
	)
}
