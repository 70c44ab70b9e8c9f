// Package reassemble streams a stored file back out of its parts: fetch
// each part from the backend it landed on, unpack its archive (or pass
// raw legacy bytes through), and emit the result in fixed-size slices
// over a bounded channel. Ported from original_source/download.rs's
// fetch_part / merge_to_channel.
package reassemble

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
	"github.com/ThanhGoodBoy/splitvault/internal/archive"
	"github.com/ThanhGoodBoy/splitvault/internal/retry"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

// chanCapacity bounds how many read_buffer_bytes slices can sit unread in
// the stream before the producer blocks (original_source/download.rs: 16).
const chanCapacity = 16

// DiscordFetcher is the subset of *discordbackend.Backend the reassembly
// streamer needs.
type DiscordFetcher interface {
	FetchAttachmentURL(channelID string, messageID int64) (string, error)
	DownloadURL(url string) ([]byte, error)
}

// TelegramFetcher is the subset of *telegrambackend.Backend the reassembly
// streamer needs.
type TelegramFetcher interface {
	DownloadPart(fileID string) ([]byte, error)
}

// Deps are the backend adapters parts are fetched from.
type Deps struct {
	Discord  DiscordFetcher
	Telegram TelegramFetcher
}

// Config carries the tunables merge_to_channel needs, sourced from
// config.json.
type Config struct {
	ReadBufferBytes    int
	PartDelayMs        int
	DownloadRetry      int
	DownloadRetryBaseS int
}

// Stream fetches and unpacks every part of record in order, emitting
// fixed-size slices on the returned data channel. The error channel
// receives at most one error and is then closed; the data channel is
// always closed when the producer finishes, whether or not an error
// occurred.
func Stream(ctx context.Context, record state.FileRecord, deps Deps, cfg Config) (<-chan []byte, <-chan error) {
	dataCh := make(chan []byte, chanCapacity)
	errCh := make(chan error, 1)

	go produce(ctx, record, deps, cfg, dataCh, errCh)

	return dataCh, errCh
}

func produce(ctx context.Context, record state.FileRecord, deps Deps, cfg Config, dataCh chan<- []byte, errCh chan<- error) {
	defer close(errCh)
	defer close(dataCh)

	parts := record.NormalizedParts()
	sort.Slice(parts, func(i, j int) bool { return parts[i].Part < parts[j].Part })

	for i, part := range parts {
		if ctx.Err() != nil {
			errCh <- ctx.Err()
			return
		}

		raw, err := fetchPartWithRetry(ctx, part, deps, cfg)
		if err != nil {
			errCh <- fmt.Errorf("reassemble: fetch part %d: %w", part.Part, err)
			return
		}

		unpacked, err := archive.UnpackOrRaw(raw)
		if err != nil {
			errCh <- apierr.BackendPermanent(err, "reassemble: unpack part %d", part.Part)
			return
		}

		if err := emitSliced(ctx, unpacked, cfg.ReadBufferBytes, dataCh); err != nil {
			errCh <- err
			return
		}

		if i < len(parts)-1 && cfg.PartDelayMs > 0 {
			select {
			case <-time.After(time.Duration(cfg.PartDelayMs) * time.Millisecond):
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
	}
}

func emitSliced(ctx context.Context, data []byte, chunkSize int, dataCh chan<- []byte) error {
	if chunkSize <= 0 {
		chunkSize = len(data)
		if chunkSize == 0 {
			return nil
		}
	}
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		slice := make([]byte, end-offset)
		copy(slice, data[offset:end])
		select {
		case dataCh <- slice:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// fetchPartWithRetry retries fetchPart up to cfg.DownloadRetry times using
// the same exponential backoff law dispatchPart uses for sends: delay =
// DownloadRetryBaseS^attempt seconds. A permanent error aborts immediately.
func fetchPartWithRetry(ctx context.Context, part state.PartInfo, deps Deps, cfg Config) ([]byte, error) {
	attempts := cfg.DownloadRetry
	if attempts < 1 {
		attempts = 1
	}

	var raw []byte
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		raw, lastErr = fetchPart(part, deps)
		if lastErr == nil {
			return raw, nil
		}
		if !apierr.IsTransient(lastErr) {
			return nil, lastErr
		}
		if attempt < attempts-1 {
			select {
			case <-time.After(retry.Delay(cfg.DownloadRetryBaseS, attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

func fetchPart(part state.PartInfo, deps Deps) ([]byte, error) {
	switch part.Platform {
	case state.PlatformB:
		if deps.Telegram == nil || part.FileID == nil {
			return nil, apierr.Internal(nil, "reassemble: part %d missing telegram file id", part.Part)
		}
		return deps.Telegram.DownloadPart(*part.FileID)
	default:
		if deps.Discord == nil || part.ChannelID == nil {
			return nil, apierr.Internal(nil, "reassemble: part %d missing discord channel id", part.Part)
		}
		url, err := deps.Discord.FetchAttachmentURL(*part.ChannelID, part.MessageID)
		if err != nil {
			return nil, err
		}
		return deps.Discord.DownloadURL(url)
	}
}
