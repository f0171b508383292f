package modules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Seklfreak/mirrorbot/cache"
	"github.com/Seklfreak/mirrorbot/helpers"
	"github.com/Seklfreak/mirrorbot/metrics"
	"github.com/Seklfreak/mirrorbot/ratelimits"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Modules routes commands and events to the registered plugins
type Modules struct {
	gateway helpers.Gateway
	limiter *ratelimits.BucketContainer

	PluginList         []Plugin
	PluginExtendedList []ExtendedPlugin

	pluginCache map[string]Plugin
}

func New(gateway helpers.Gateway, limiter *ratelimits.BucketContainer, plugins []Plugin, extendedPlugins []ExtendedPlugin) *Modules {
	return &Modules{
		gateway:            gateway,
		limiter:            limiter,
		PluginList:         plugins,
		PluginExtendedList: extendedPlugins,
		pluginCache:        make(map[string]Plugin),
	}
}

func (m *Modules) log() *logrus.Entry {
	return cache.GetLogger().WithField("module", "modules")
}

// Init maps the commands to their plugins and initializes the plugins
func (m *Modules) Init() error {
	err := m.checkDuplicateCommands()
	if err != nil {
		return err
	}

	pluginCache := make(map[string]Plugin)

	logTemplate := "[PLUG] %s reacts to [ %s]"
	for _, plugin := range m.PluginList {
		listeners := ""
		for _, cmd := range plugin.Commands() {
			pluginCache[cmd] = plugin
			listeners += cmd + " "
		}

		m.log().Info(fmt.Sprintf(logTemplate, helpers.Typeof(plugin), listeners))

		plugin.Init()
	}

	logTemplate = "[EXTENDED-PLUG] %s reacts to [ %s]"
	for _, plugin := range m.PluginExtendedList {
		listeners := ""
		for _, cmd := range plugin.Commands() {
			pluginCache[cmd] = plugin
			listeners += cmd + " "
		}

		m.log().Info(fmt.Sprintf(logTemplate, helpers.Typeof(plugin), listeners))

		plugin.Init()
	}
	m.pluginCache = pluginCache

	m.log().Info(
		"Initializer finished. Loaded " + strconv.Itoa(len(m.PluginList)) + " plugins and " +
			strconv.Itoa(len(m.PluginExtendedList)) + " extended plugins",
	)
	return nil
}

// Uninit deintializes the extended plugins
func (m *Modules) Uninit() {
	for _, plugin := range m.PluginExtendedList {
		m.log().Info(fmt.Sprintf("[EXTENDED-PLUG] %s deintializing…", helpers.Typeof(plugin)))

		plugin.Uninit()
	}

	m.log().Info("Uninit finished. Unitialized " + strconv.Itoa(len(m.PluginExtendedList)) + " extended plugins")
}

// CallBotPlugin runs the plugin registered for command
// command - The command that triggered this execution
// content - The content without command
// msg     - The message object
func (m *Modules) CallBotPlugin(command string, content string, msg *discordgo.Message) {
	// Defer a recovery in case anything panics
	defer helpers.RecoverDiscord(m.gateway, msg)

	ref, ok := m.pluginCache[command]
	if !ok {
		return
	}

	// Consume a key for this action
	if err := m.limiter.Drain(1, msg.Author.ID); err != nil {
		m.log().WithField("userID", msg.Author.ID).Debugf("ignoring %s: %s", command, err.Error())
		return
	}

	// Track metrics
	metrics.CommandsExecuted.Add(1)

	ref.Action(command, content, msg)
}

func (m *Modules) CallExtendedPlugin(content string, msg *discordgo.Message) {
	defer helpers.Recover()

	for _, extendedPlugin := range m.PluginExtendedList {
		extendedPlugin.OnMessage(strings.TrimSpace(content), msg)
	}
}

func (m *Modules) CallExtendedPluginOnMessageUpdate(msg *discordgo.MessageUpdate) {
	defer helpers.Recover()

	for _, extendedPlugin := range m.PluginExtendedList {
		extendedPlugin.OnMessageUpdate(msg)
	}
}

func (m *Modules) CallExtendedPluginOnMessageDelete(msg *discordgo.MessageDelete) {
	defer helpers.Recover()

	for _, extendedPlugin := range m.PluginExtendedList {
		extendedPlugin.OnMessageDelete(msg)
	}
}

func (m *Modules) CallExtendedPluginOnMessageDeleteBulk(event *discordgo.MessageDeleteBulk) {
	defer helpers.Recover()

	for _, extendedPlugin := range m.PluginExtendedList {
		extendedPlugin.OnMessageDeleteBulk(event)
	}
}

func (m *Modules) CallExtendedPluginOnChannelDelete(event *discordgo.ChannelDelete) {
	defer helpers.Recover()

	for _, extendedPlugin := range m.PluginExtendedList {
		extendedPlugin.OnChannelDelete(event)
	}
}

func (m *Modules) CallExtendedPluginOnGuildDelete(event *discordgo.GuildDelete) {
	defer helpers.Recover()

	for _, extendedPlugin := range m.PluginExtendedList {
		extendedPlugin.OnGuildDelete(event)
	}
}

func (m *Modules) checkDuplicateCommands() error {
	cmds := make(map[string]string)

	register := func(t string, commands []string) error {
		for _, cmd := range commands {
			if occupant, ok := cmds[cmd]; ok {
				return errors.New("failed to load " + t + " because '" + cmd + "' was already registered by " + occupant)
			}
			cmds[cmd] = t
		}
		return nil
	}

	for _, plug := range m.PluginList {
		if err := register(helpers.Typeof(plug), plug.Commands()); err != nil {
			return err
		}
	}
	for _, plug := range m.PluginExtendedList {
		if err := register(helpers.Typeof(plug), plug.Commands()); err != nil {
			return err
		}
	}
	return nil
}
