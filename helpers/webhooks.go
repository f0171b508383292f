package helpers

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Seklfreak/mirrorbot/cache"
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const webhookURLFormat = "https://discord.com/api/webhooks/%s/%s"

var webhookURLRegex = regexp.MustCompile(
	`^https://(?:(?:ptb|canary)\.)?discord(?:app)?\.com/api(?:/v\d+)?/webhooks/(\d+)/([\w-]+)/?$`)

// WebhookHandle is everything needed to post, edit and delete through a webhook.
type WebhookHandle struct {
	ID        string
	Token     string
	ChannelID string
}

func (h WebhookHandle) URL() string {
	return fmt.Sprintf(webhookURLFormat, h.ID, h.Token)
}

// ParseWebhookURL splits a webhook URL into its ID and token
func ParseWebhookURL(webhookURL string) (id, token string, err error) {
	matches := webhookURLRegex.FindStringSubmatch(strings.TrimSpace(webhookURL))
	if len(matches) != 3 {
		return "", "", NewError(ErrorKindInvalidTarget, "invalid webhook url")
	}
	return matches[1], matches[2], nil
}

// WebhookManager creates, finds and deletes the webhooks mirrors post through.
type WebhookManager struct {
	gateway Gateway

	webhookCacheLock sync.Mutex
	webhookCache     map[string][]*discordgo.Webhook // map[channelID][]webhooks
}

func NewWebhookManager(gateway Gateway) *WebhookManager {
	return &WebhookManager{
		gateway:      gateway,
		webhookCache: make(map[string][]*discordgo.Webhook),
	}
}

func (m *WebhookManager) log() *logrus.Entry {
	return cache.GetLogger().WithField("module", "webhooks")
}

// channelWebhooks lists the webhooks of channelID, using the cache if possible
func (m *WebhookManager) channelWebhooks(channelID string) ([]*discordgo.Webhook, error) {
	m.webhookCacheLock.Lock()
	cached, ok := m.webhookCache[channelID]
	m.webhookCacheLock.Unlock()
	if ok {
		return cached, nil
	}

	webhooks, err := m.gateway.ChannelWebhooks(channelID)
	if err != nil {
		return nil, ClassifyError(err)
	}

	m.webhookCacheLock.Lock()
	m.webhookCache[channelID] = webhooks
	m.webhookCacheLock.Unlock()

	m.log().Debugf("got %d webhooks for #%s from existing webhooks", len(webhooks), channelID)
	return webhooks, nil
}

// Forget drops the cached webhook list of channelID
func (m *WebhookManager) Forget(channelID string) {
	m.webhookCacheLock.Lock()
	delete(m.webhookCache, channelID)
	m.webhookCacheLock.Unlock()
}

// Resolve returns a handle for webhookURL. An existing webhook of the channel with the
// same ID and token is preferred, otherwise the handle is built from the URL alone and
// may turn out to be dead on first use.
func (m *WebhookManager) Resolve(channelID, webhookURL string) (WebhookHandle, error) {
	id, token, err := ParseWebhookURL(webhookURL)

	webhooks, listErr := m.channelWebhooks(channelID)
	if listErr != nil {
		m.log().WithField("channelID", channelID).Debugf("listing webhooks failed: %s", listErr.Error())
	}
	for _, webhook := range webhooks {
		if webhook.ID == id && webhook.Token == token {
			return WebhookHandle{ID: webhook.ID, Token: webhook.Token, ChannelID: channelID}, nil
		}
	}

	if err != nil {
		return WebhookHandle{}, err
	}
	return WebhookHandle{ID: id, Token: token, ChannelID: channelID}, nil
}

// Create adds a new webhook to channelID
func (m *WebhookManager) Create(channelID, reason string) (WebhookHandle, error) {
	webhook, err := m.gateway.WebhookCreate(channelID, GetText("plugins.mirror.webhook-name"), reason)
	if err != nil {
		return WebhookHandle{}, ClassifyError(err)
	}
	m.Forget(channelID)

	m.log().Infof("created a new webhook for #%s", channelID)
	return WebhookHandle{ID: webhook.ID, Token: webhook.Token, ChannelID: channelID}, nil
}

// Delete removes the webhook. A webhook that is already gone is not an error.
func (m *WebhookManager) Delete(handle WebhookHandle, reason string) error {
	if handle.ChannelID != "" {
		m.Forget(handle.ChannelID)
	}

	err := ClassifyError(m.gateway.WebhookDelete(handle.ID, handle.Token, reason))
	if KindOf(err) == ErrorKindInvalidTarget {
		m.log().Debugf("webhook #%s was already deleted", handle.ID)
		return nil
	}
	return err
}

// DeleteURL deletes the webhook behind webhookURL, invalid URLs are not an error.
func (m *WebhookManager) DeleteURL(channelID, webhookURL, reason string) error {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		m.log().Debugf("not deleting invalid webhook url for #%s", channelID)
		return nil
	}
	return m.Delete(WebhookHandle{ID: id, Token: token, ChannelID: channelID}, reason)
}

func (m *WebhookManager) Execute(handle WebhookHandle, params *discordgo.WebhookParams) (*discordgo.Message, error) {
	message, err := m.gateway.WebhookExecute(handle.ID, handle.Token, params)
	return message, ClassifyError(err)
}

func (m *WebhookManager) EditMessage(handle WebhookHandle, messageID, content string, embeds []*discordgo.MessageEmbed) error {
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	return ClassifyError(m.gateway.WebhookMessageEdit(handle.ID, handle.Token, messageID, &discordgo.WebhookEdit{
		Content: &content,
		Embeds:  &embeds,
	}))
}

func (m *WebhookManager) DeleteMessage(handle WebhookHandle, messageID string) error {
	return ClassifyError(m.gateway.WebhookMessageDelete(handle.ID, handle.Token, messageID))
}
