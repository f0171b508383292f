// Except.go: Contains functions to make handling panics less PITA

package helpers

import (
	"fmt"
	"runtime"

	"github.com/Seklfreak/mirrorbot/cache"
	"github.com/bwmarrin/discordgo"
	"github.com/getsentry/raven-go"
	"github.com/sirupsen/logrus"
)

var DEBUG_MODE = false

// Recover recover()s, logs the panic and reports it to sentry
func Recover() {
	err := recover()
	if err != nil {
		reportPanic(err, nil)
	}
}

// RecoverDiscord recover()s and additionally tells the channel of msg that something went wrong
func RecoverDiscord(gateway Gateway, msg *discordgo.Message) {
	err := recover()
	if err != nil {
		reportPanic(err, msg)

		if gateway != nil && msg != nil {
			_, sendErr := gateway.ChannelMessageSend(msg.ChannelID, GetText("bot.errors.generic"))
			RelaxLog(sendErr)
		}
	}
}

func reportPanic(err interface{}, msg *discordgo.Message) {
	fields := logrus.Fields{"module": "except"}
	tags := map[string]string{}
	if msg != nil {
		fields["channelID"] = msg.ChannelID
		fields["messageID"] = msg.ID
		tags["ChannelID"] = msg.ChannelID
		tags["MessageID"] = msg.ID
	}

	if DEBUG_MODE {
		buf := make([]byte, 1<<16)
		stackSize := runtime.Stack(buf, false)
		fields["stack"] = string(buf[0:stackSize])
	}

	cache.GetLogger().WithFields(fields).Errorf("recovered from panic: %#v", err)
	raven.CaptureError(fmt.Errorf("%#v", err), tags)
}

// Relax is a helper to reduce if-checks if panicking is allowed
// If $err is nil this is a no-op. Panics otherwise.
func Relax(err error) {
	if err != nil {
		panic(err)
	}
}

// RelaxLog logs $err at error level and reports it to sentry, no-op if $err is nil
func RelaxLog(err error) {
	if err != nil {
		cache.GetLogger().WithField("module", "except").Error(err.Error())
		raven.CaptureError(err, map[string]string{})
	}
}
