package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/Seklfreak/mirrorbot/cache"
	"github.com/Seklfreak/mirrorbot/helpers"
	"github.com/Seklfreak/mirrorbot/logging"
	"github.com/Seklfreak/mirrorbot/metrics"
	"github.com/Seklfreak/mirrorbot/models"
	"github.com/Seklfreak/mirrorbot/modules"
	"github.com/Seklfreak/mirrorbot/modules/plugins"
	"github.com/Seklfreak/mirrorbot/ratelimits"
	"github.com/Seklfreak/mirrorbot/version"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/raven-go"
	"github.com/joho/godotenv"
	"github.com/kz/discordrus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

const tokenEnvironmentKey = "MIRRORBOT_TOKEN"

// direct messages are needed to answer commands sent outside of a guild
const gatewayIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildWebhooks |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Entrypoint
func main() {
	configPath := pflag.StringP("config", "c", "config.json", "path of the config file")
	debug := pflag.BoolP("debug", "d", false, "enable debug logging")
	envFile := pflag.String("env-file", ".env", "optional .env file to load environment variables from")
	pflag.Parse()

	log := logrus.New()
	log.Out = os.Stdout
	log.Level = logrus.InfoLevel
	log.Formatter = &logrus.TextFormatter{ForceColors: true, FullTimestamp: true, TimestampFormat: time.RFC3339}
	log.Hooks = make(logrus.LevelHooks)
	cache.SetLogger(log)

	err := godotenv.Load(*envFile)
	if err != nil && !os.IsNotExist(err) {
		log.WithField("module", "launcher").Warnf("loading %s failed: %s", *envFile, err.Error())
	}

	// Read config
	config, err := helpers.LoadConfig(*configPath)
	if err != nil {
		log.WithField("module", "launcher").Fatal(err.Error())
	}

	// Check if the bot is being debugged
	if *debug || config.GetBool("debug") {
		helpers.DEBUG_MODE = true
		log.Level = logrus.DebugLevel
	}

	if jsonFile := config.GetString("logging.jsonfile", ""); jsonFile != "" {
		fileHook, err := logging.NewLogrusFileHook(jsonFile, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
		if err != nil {
			log.WithField("module", "launcher").Error("logrus file hook failed, err:", err.Error())
		} else {
			log.Hooks.Add(fileHook)
			defer fileHook.Close()
		}
	}

	if discordWebhook := config.GetString("logging.discord_webhook", ""); discordWebhook != "" {
		log.Hooks.Add(discordrus.NewHook(
			discordWebhook,
			logrus.ErrorLevel,
			&discordrus.Opts{
				Username:           "Logging",
				DisableTimestamp:   false,
				TimestampFormat:    "Jan 2 15:04:05.00000",
				EnableCustomColors: true,
				CustomLevelColors: &discordrus.LevelColors{
					Error: 13631488,
					Panic: 13631488,
					Fatal: 13631488,
				},
			},
		))
	}

	token := config.Token()
	if envToken := os.Getenv(tokenEnvironmentKey); envToken != "" {
		token = envToken
	}
	if token == "" || token == models.TokenPlaceholder {
		if config.Token() == "" {
			helpers.Relax(config.SetString(models.ConfigTokenKey, models.TokenPlaceholder))
		}
		helpers.RelaxLog(config.Save())
		fmt.Printf("Please configure the %s by modifying the '%s' file!\n", models.ConfigTokenKey, config.Path())
		os.Exit(1)
	}

	prefix := config.Prefix()
	if prefix == "" {
		prefix = models.DefaultPrefix
		helpers.Relax(config.SetString(models.ConfigPrefixKey, prefix))
		helpers.RelaxLog(config.Save())
	}

	log.WithField("module", "launcher").Info("Booting mirrorbot...")

	// Read i18n
	helpers.LoadTranslations()

	// Show version
	version.DumpInfo()

	// Start metric server
	metrics.Init(config.GetString("metrics_ip", ""))

	// Print UA
	log.WithField("module", "launcher").Info("USERAGENT: '" + helpers.DEFAULT_UA + "'")

	// Call home
	if dsn := config.GetString("sentry", ""); dsn != "" {
		log.WithField("module", "launcher").Info("[SENTRY] Calling home...")
		err = raven.SetDSN(dsn)
		if err != nil {
			panic(err)
		}
		if version.BOT_VERSION != "UNSET" {
			raven.SetRelease(version.BOT_VERSION)
		}
		log.WithField("module", "launcher").Info("[SENTRY] Someone picked up the phone \\^-^/")
	}

	mappings, err := config.Mappings()
	if err != nil {
		log.WithField("module", "launcher").Fatal(err.Error())
	}
	log.WithField("module", "launcher").Infof("Bot prefix is '%s'", prefix)

	// Route discordgo's own logging into logrus
	discordgo.Logger = func(msgL, caller int, format string, a ...interface{}) {
		pc, file, line, _ := runtime.Caller(caller)

		files := strings.Split(file, "/")
		file = files[len(files)-1]

		name := runtime.FuncForPC(pc).Name()
		fns := strings.Split(name, ".")
		name = fns[len(fns)-1]

		msg := format
		if strings.Contains(msg, "%") {
			msg = fmt.Sprintf(format, a...)
		}

		switch msgL {
		case discordgo.LogError:
			log.WithField("module", "discordgo").Errorf("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogWarning:
			log.WithField("module", "discordgo").Warnf("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogInformational:
			log.WithField("module", "discordgo").Infof("%s:%d:%s() %s", file, line, name, msg)
		case discordgo.LogDebug:
			log.WithField("module", "discordgo").Debugf("%s:%d:%s() %s", file, line, name, msg)
		}
	}

	log.WithField("module", "launcher").Info("Connecting mirrorbot to discord...")
	discord, err := discordgo.New("Bot " + token)
	if err != nil {
		panic(err)
	}

	discord.Lock()
	discord.Debug = false
	discord.LogLevel = discordgo.LogInformational
	discord.StateEnabled = true
	discord.Identify.Intents = gatewayIntents
	discord.Unlock()

	gateway := helpers.NewDiscordGateway(discord, helpers.NewDownloader())
	store := helpers.NewMappingStore(config, mappings)
	messages := cache.NewMirroredMessages()
	limiter := ratelimits.NewBucketContainer()

	mods := modules.New(
		gateway,
		limiter,
		[]modules.Plugin{
			plugins.NewPing(gateway),
		},
		[]modules.ExtendedPlugin{
			plugins.NewMirror(gateway, store, helpers.NewWebhookManager(gateway), messages),
		},
	)
	err = mods.Init()
	if err != nil {
		log.WithField("module", "launcher").Fatal(err.Error())
	}

	bot := NewBot(gateway, mods, prefix)
	bot.AddHandlers(discord)

	// Connect to discord
	err = discord.Open()
	if err != nil {
		raven.CaptureErrorAndWait(err, nil)
		panic(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Evict old mirrored messages
	go messages.Run(ctx, cache.MirroredMessagesSweepInterval, func(removed, left int) {
		metrics.MirrorsCachedMessages.Set(int64(left))
		log.WithField("module", "launcher").Infof("Removed %d messages from cache, %d left.", removed, left)
	})

	// Run ratelimiter
	go limiter.Run(ctx, ratelimits.DROP_INTERVAL)

	go metrics.CollectRuntimeMetrics(ctx)

	// Make a channel that waits for a os signal
	botRuntimeChannel := make(chan os.Signal, 1)
	signal.Notify(botRuntimeChannel, os.Interrupt, syscall.SIGTERM)

	// Wait until the os wants us to shutdown
	<-botRuntimeChannel

	log.WithField("module", "launcher").Info("mirrorbot is stopping")
	cancel()
	log.WithField("module", "launcher").Info("Uninitializing plugins...")
	mods.Uninit()
	log.WithField("module", "launcher").Info("Disconnecting bot discord session...")
	helpers.RelaxLog(discord.Close())
}
