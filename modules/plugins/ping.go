package plugins

import (
	"strconv"
	"time"

	"github.com/Seklfreak/mirrorbot/helpers"
	"github.com/bwmarrin/discordgo"
)

type Ping struct {
	gateway helpers.Gateway
}

func NewPing(gateway helpers.Gateway) *Ping {
	return &Ping{gateway: gateway}
}

func (p *Ping) Commands() []string {
	return []string{
		"ping",
	}
}

func (p *Ping) Init() {
}

// Action replies with the time between the command message being created and now
func (p *Ping) Action(command string, content string, msg *discordgo.Message) {
	sent := messageCreatedAt(msg)
	delay := float64(time.Since(sent)) / float64(time.Millisecond)

	_, err := p.gateway.ChannelMessageSend(msg.ChannelID,
		helpers.GetTextF("plugins.ping.message", strconv.FormatFloat(delay, 'f', 3, 64)))
	helpers.RelaxLog(err)
}
