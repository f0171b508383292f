package metrics

import (
	"context"
	"expvar"
	"net/http"
	"runtime"
	"time"

	"github.com/Seklfreak/mirrorbot/cache"
)

var (
	// MessagesReceived counts all ever received messages
	MessagesReceived = expvar.NewInt("messages_received")

	// CommandsExecuted increases after each command execution
	CommandsExecuted = expvar.NewInt("commands_executed")

	// MirrorsPostsSent counts messages posted through mirror webhooks
	MirrorsPostsSent = expvar.NewInt("mirrors_posts_sent")

	// MirrorsPostsFailed counts forwards that failed
	MirrorsPostsFailed = expvar.NewInt("mirrors_posts_failed")

	// MirrorsEditsSent counts mirrored messages edited after their original was edited
	MirrorsEditsSent = expvar.NewInt("mirrors_edits_sent")

	// MirrorsDeletesSent counts mirrored messages deleted after their original was deleted
	MirrorsDeletesSent = expvar.NewInt("mirrors_deletes_sent")

	// MirrorsCachedMessages is the size of the mirrored message cache after the last sweep
	MirrorsCachedMessages = expvar.NewInt("mirrors_cached_messages")

	// MirrorsMappings is the amount of configured mirrors
	MirrorsMappings = expvar.NewInt("mirrors_mappings")

	// CoroutineCount counts all running coroutines
	CoroutineCount = expvar.NewInt("coroutine_count")

	// Uptime stores the timestamp of the bot's boot
	Uptime = expvar.NewInt("uptime")
)

// Init starts a http server on $listenIP:1337, expvar registers itself at /debug/vars
func Init(listenIP string) {
	Uptime.Set(time.Now().Unix())
	if listenIP == "" {
		return
	}

	cache.GetLogger().WithField("module", "metrics").Info("Listening on TCP/1337")
	go func() {
		err := http.ListenAndServe(listenIP+":1337", nil)
		if err != nil {
			cache.GetLogger().WithField("module", "metrics").Error("metrics server failed: ", err.Error())
		}
	}()
}

// CollectRuntimeMetrics counts all running coroutines until ctx is done
func CollectRuntimeMetrics(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		CoroutineCount.Set(int64(runtime.NumGoroutine()))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
