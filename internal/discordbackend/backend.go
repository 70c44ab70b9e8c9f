// Package discordbackend is the Backend A adapter: it wraps a
// discordgo.Session to provide container (category) and channel
// management, part upload, and attachment URL resolution. Ported from
// original_source/discord_bot.rs, generalized from the teacher's
// single-channel bot.go/server.go into the container+channel model
// spec.md §4.2 requires.
package discordbackend

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
)

// Backend wraps a discordgo.Session scoped to a single guild.
type Backend struct {
	Session *discordgo.Session
	GuildID string

	httpClient *http.Client
}

func New(token, guildID string, httpTimeout time.Duration) (*Backend, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discordbackend: creating session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	return &Backend{
		Session:    dg,
		GuildID:    guildID,
		httpClient: &http.Client{Timeout: httpTimeout},
	}, nil
}

// Open connects the gateway session, as the teacher's bot.Start does.
func (b *Backend) Open() error {
	return b.Session.Open()
}

func (b *Backend) Close() error {
	return b.Session.Close()
}

// SanitizeName normalizes a container/channel name: lowercase,
// keep [a-z0-9-_ ], collapse spaces to '-', collapse runs of '-', trim
// leading/trailing '-', cap at 100 chars, default to "file" if empty.
// Ported verbatim from original_source/discord_bot.rs::sanitize_name.
func SanitizeName(name string) string {
	lower := strings.ToLower(name)
	var filtered strings.Builder
	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == ' ' {
			filtered.WriteRune(r)
		}
	}
	dashed := strings.ReplaceAll(strings.TrimSpace(filtered.String()), " ", "-")

	var result strings.Builder
	lastDash := false
	for _, r := range dashed {
		if r == '-' {
			if !lastDash {
				result.WriteRune('-')
			}
			lastDash = true
		} else {
			result.WriteRune(r)
			lastDash = false
		}
	}
	trimmed := strings.Trim(result.String(), "-")
	if trimmed == "" {
		return "file"
	}
	if len(trimmed) > 100 {
		trimmed = trimmed[:100]
	}
	return trimmed
}

// EnsureContainer looks up a category channel by sanitized name, or
// creates one if absent.
func (b *Backend) EnsureContainer(name string) (*discordgo.Channel, error) {
	safe := SanitizeName(name)

	channels, err := b.Session.GuildChannels(b.GuildID)
	if err != nil {
		return nil, apierr.BackendTransient(err, "discordbackend: list channels")
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && strings.ToLower(ch.Name) == safe {
			return ch, nil
		}
	}

	ch, err := b.Session.GuildChannelCreateComplex(b.GuildID, discordgo.GuildChannelCreateData{
		Name: safe,
		Type: discordgo.ChannelTypeGuildCategory,
	})
	if err != nil {
		return nil, apierr.BackendTransient(err, "discordbackend: create category %q", safe)
	}
	return ch, nil
}

// EnsureChannel looks up a text channel by sanitized name (optionally
// scoped to a parent category), or creates one if absent.
func (b *Backend) EnsureChannel(name, containerID string) (*discordgo.Channel, error) {
	safe := SanitizeName(name)

	channels, err := b.Session.GuildChannels(b.GuildID)
	if err != nil {
		return nil, apierr.BackendTransient(err, "discordbackend: list channels")
	}
	for _, ch := range channels {
		if ch.Type != discordgo.ChannelTypeGuildText || strings.ToLower(ch.Name) != safe {
			continue
		}
		if containerID == "" || ch.ParentID == containerID {
			return ch, nil
		}
	}

	data := discordgo.GuildChannelCreateData{
		Name: safe,
		Type: discordgo.ChannelTypeGuildText,
	}
	if containerID != "" {
		data.ParentID = containerID
	}
	ch, err := b.Session.GuildChannelCreateComplex(b.GuildID, data)
	if err != nil {
		return nil, apierr.BackendTransient(err, "discordbackend: create channel %q", safe)
	}
	return ch, nil
}

// DeleteChannel removes a text channel unconditionally.
func (b *Backend) DeleteChannel(channelID string) error {
	_, err := b.Session.ChannelDelete(channelID)
	if err != nil {
		return apierr.BackendTransient(err, "discordbackend: delete channel %s", channelID)
	}
	return nil
}

// DeleteContainer removes a category only if it currently has no child
// channels.
func (b *Backend) DeleteContainer(containerID string) error {
	channels, err := b.Session.GuildChannels(b.GuildID)
	if err != nil {
		return apierr.BackendTransient(err, "discordbackend: list channels")
	}
	for _, ch := range channels {
		if ch.ParentID == containerID {
			return nil
		}
	}
	_, err = b.Session.ChannelDelete(containerID)
	if err != nil {
		return apierr.BackendTransient(err, "discordbackend: delete category %s", containerID)
	}
	return nil
}

// MoveChannel reparents a text channel under a new category, or to the
// guild root if containerID is empty.
func (b *Backend) MoveChannel(channelID, containerID string) error {
	_, err := b.Session.ChannelEditComplex(channelID, &discordgo.ChannelEdit{
		ParentID: containerID,
	})
	if err != nil {
		return apierr.BackendTransient(err, "discordbackend: move channel %s", channelID)
	}
	return nil
}

// SendPart uploads archived bytes as a single message with a caption,
// returning the numeric message id and its jump URL.
func (b *Backend) SendPart(channelID string, data []byte, archiveName, caption string) (int64, string, error) {
	msg, err := b.Session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: caption,
		Files: []*discordgo.File{
			{
				Name:        archiveName,
				ContentType: "application/zip",
				Reader:      bytes.NewReader(data),
			},
		},
	})
	if err != nil {
		return 0, "", apierr.BackendTransient(err, "discordbackend: send part to channel %s", channelID)
	}
	id, err := strconv.ParseInt(msg.ID, 10, 64)
	if err != nil {
		return 0, "", apierr.Internal(err, "discordbackend: parse message id %q", msg.ID)
	}
	jumpURL := fmt.Sprintf("https://discord.com/channels/%s/%s/%s", b.GuildID, channelID, msg.ID)
	return id, jumpURL, nil
}

// FetchAttachmentURL resolves a message's first attachment URL.
func (b *Backend) FetchAttachmentURL(channelID string, messageID int64) (string, error) {
	msg, err := b.Session.ChannelMessage(channelID, strconv.FormatInt(messageID, 10))
	if err != nil {
		return "", apierr.BackendTransient(err, "discordbackend: fetch message %d", messageID)
	}
	if len(msg.Attachments) == 0 {
		return "", apierr.BackendPermanent(nil, "discordbackend: message %d has no attachment", messageID)
	}
	return msg.Attachments[0].URL, nil
}

// DownloadURL fetches the bytes at url using the backend's HTTP client. An
// empty body is treated as a transient error (retryable).
func (b *Backend) DownloadURL(url string) ([]byte, error) {
	resp, err := b.httpClient.Get(url)
	if err != nil {
		return nil, apierr.BackendTransient(err, "discordbackend: GET %s", url)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.BackendTransient(err, "discordbackend: read body from %s", url)
	}
	if len(data) == 0 {
		return nil, apierr.BackendTransient(nil, "discordbackend: empty response from %s", url)
	}
	return data, nil
}

// GuildFileSizeLimit returns the per-attachment byte cap for the guild's
// current boost tier (spec.md §4.5).
func (b *Backend) GuildFileSizeLimit() (int64, error) {
	guild, err := b.Session.Guild(b.GuildID)
	if err != nil {
		return 0, apierr.BackendTransient(err, "discordbackend: fetch guild %s", b.GuildID)
	}
	switch guild.PremiumTier {
	case discordgo.PremiumTier2:
		return 50 * 1024 * 1024, nil
	case discordgo.PremiumTier3:
		return 100 * 1024 * 1024, nil
	default:
		return 10 * 1024 * 1024, nil
	}
}
