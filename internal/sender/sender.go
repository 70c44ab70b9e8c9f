// Package sender implements the streaming upload orchestrator: chunks
// arrive out of order over a channel, are reassembled into an in-order
// byte stream, cut into size-bounded parts as soon as enough bytes have
// accumulated, and dispatched concurrently to Backend A and/or Backend B.
// Ported from original_source/upload.rs's streaming_sender / dispatch_part,
// generalized from the teacher's single-shot handleUpload
// (internal/server/server.go) into a long-lived, resumable pipeline.
package sender

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
	"github.com/ThanhGoodBoy/splitvault/internal/archive"
	"github.com/ThanhGoodBoy/splitvault/internal/retry"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

// pollInterval is the drain loop's idle sleep when no new chunk arrived and
// the input channel is still open (original_source/upload.rs: 50ms).
const pollInterval = 50 * time.Millisecond

// chunkQueueCapacity bounds how many chunks an HTTP handler can push ahead
// of the drain loop before it blocks (spec.md §4.5: capacity 64).
const chunkQueueCapacity = 64

// Chunk is one piece of the upload, tagged with its position so the loop
// can reassemble out-of-order arrivals.
type Chunk struct {
	Index int
	Data  []byte
}

// Config carries the tunables streaming_sender needs, all sourced from
// config.json (internal/config).
type Config struct {
	ZipCompressLevel       int
	DiscordSafeRatio       float64
	DiscordParallelSends   int
	TgParallelSends        int
	DiscordSendRetries     int
	DiscordRetryBaseDelayS int
	TgFileLimitBytes       int64
}

// DiscordSender is the subset of *discordbackend.Backend the sender
// needs, narrowed to an interface so tests can substitute a fake.
type DiscordSender interface {
	SendPart(channelID string, data []byte, archiveName, caption string) (int64, string, error)
	GuildFileSizeLimit() (int64, error)
}

// TelegramSender is the subset of *telegrambackend.Backend the sender
// needs.
type TelegramSender interface {
	SendPart(data []byte, archiveName, caption string) (messageID int64, fileID string, err error)
}

// Deps are the backend adapters a sender dispatches parts to.
type Deps struct {
	Discord         DiscordSender
	Telegram        TelegramSender
	TelegramEnabled bool
}

// Result is delivered on an Entry's result channel exactly once, whether
// the upload succeeded or failed.
type Result struct {
	SessionID string
	Record    state.FileRecord
	Err       error
}

// Entry is the live, in-memory handle for a running upload: the HTTP layer
// writes chunks into ChunkTx and reads the final outcome from ResultCh.
type Entry struct {
	ChunkTx  chan Chunk
	ResultCh chan Result

	cancel context.CancelFunc
}

// Abort cancels the in-flight upload. The sender goroutine observes ctx.Err
// and delivers a Result with a non-nil Err.
func (e *Entry) Abort() {
	e.cancel()
}

// Registry tracks every live sender entry by session id, mirroring
// original_source/upload.rs's SenderMap.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

func (r *Registry) Store(sessionID string, e *Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[sessionID] = e
}

func (r *Registry) Get(sessionID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	return e, ok
}

func (r *Registry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, sessionID)
}

// Spawn starts the streaming sender goroutine for one upload and returns
// its live Entry. channelID is the destination Backend A text channel;
// containerID/folder routing has already been resolved by the caller.
func Spawn(
	ctx context.Context,
	sessionID, filename string,
	fileSize int64,
	channelID, channelName, message string,
	cfg Config,
	deps Deps,
) *Entry {
	sendCtx, cancel := context.WithCancel(ctx)

	entry := &Entry{
		ChunkTx:  make(chan Chunk, chunkQueueCapacity),
		ResultCh: make(chan Result, 1),
		cancel:   cancel,
	}

	go run(sendCtx, sessionID, filename, fileSize, channelID, channelName, message, cfg, deps, entry)

	return entry
}

func run(
	ctx context.Context,
	sessionID, filename string,
	fileSize int64,
	channelID, channelName, message string,
	cfg Config,
	deps Deps,
	entry *Entry,
) {
	guildLimit, err := deps.Discord.GuildFileSizeLimit()
	if err != nil {
		entry.ResultCh <- Result{SessionID: sessionID, Err: err}
		return
	}
	tgLimit := cfg.TgFileLimitBytes
	inputLimit := inputLimitFor(guildLimit, tgLimit, deps.TelegramEnabled, cfg.DiscordSafeRatio)

	discordSem := semaphore.NewWeighted(int64(cfg.DiscordParallelSends))
	tgSem := semaphore.NewWeighted(int64(cfg.TgParallelSends))

	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make(map[int]state.PartInfo)
	var firstErr error
	partNum := 0

	dispatch := func(data []byte) {
		partNum++
		n := partNum
		wg.Add(1)
		go func() {
			defer wg.Done()
			platform := routePlatform(n, deps.TelegramEnabled)
			sem := discordSem
			if platform == state.PlatformB {
				sem = tgSem
			}
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			info, err := dispatchPart(ctx, n, data, filename, channelID, message, platform, guildLimit, tgLimit, cfg, deps)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results[n] = info
		}()
	}

	pending := make(map[int][]byte)
	nextExpected := 0
	var buf bytes.Buffer
	closed := false

	for {
		if ctx.Err() != nil {
			wg.Wait()
			entry.ResultCh <- Result{SessionID: sessionID, Err: ctx.Err()}
			return
		}

		gotOne := false
		if !closed {
			select {
			case c, ok := <-entry.ChunkTx:
				if !ok {
					closed = true
				} else {
					gotOne = true
					if c.Index == nextExpected {
						buf.Write(c.Data)
						nextExpected++
						for {
							next, ok := pending[nextExpected]
							if !ok {
								break
							}
							buf.Write(next)
							delete(pending, nextExpected)
							nextExpected++
						}
					} else {
						pending[c.Index] = c.Data
					}
				}
			default:
			}
		}

		for int64(buf.Len()) >= inputLimit {
			part := make([]byte, inputLimit)
			copy(part, buf.Bytes()[:inputLimit])
			remaining := make([]byte, buf.Len()-int(inputLimit))
			copy(remaining, buf.Bytes()[inputLimit:])
			buf.Reset()
			buf.Write(remaining)
			dispatch(part)
		}

		if closed && len(pending) == 0 {
			if buf.Len() > 0 || partNum == 0 {
				final := make([]byte, buf.Len())
				copy(final, buf.Bytes())
				dispatch(final)
			}
			break
		}

		if !gotOne {
			time.Sleep(pollInterval)
		}
	}

	wg.Wait()

	if firstErr != nil {
		entry.ResultCh <- Result{SessionID: sessionID, Err: firstErr}
		return
	}

	ordered := make([]state.PartInfo, 0, len(results))
	keys := make([]int, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	messageIDs := make([]int64, 0, len(keys))
	var jumpURL string
	for _, k := range keys {
		info := results[k]
		ordered = append(ordered, info)
		if info.MessageID != 0 {
			messageIDs = append(messageIDs, info.MessageID)
		}
		if info.JumpURL != nil && jumpURL == "" {
			jumpURL = *info.JumpURL
		}
	}

	method := state.MethodDirect
	switch {
	case len(ordered) == 1:
		method = state.MethodDirect
	case deps.TelegramEnabled:
		method = state.MethodDual
	default:
		method = state.MethodSplit
	}

	var jumpURLPtr *string
	if jumpURL != "" {
		jumpURLPtr = &jumpURL
	}
	record := state.FileRecord{
		Filename:    filename,
		SizeMB:      float64(fileSize) / (1024 * 1024),
		ChannelID:   channelID,
		ChannelName: channelName,
		Status:      "sent",
		Method:      method,
		MethodKey:   method,
		Parts:       len(ordered),
		PartsInfo:   ordered,
		MessageIDs:  messageIDs,
		JumpURL:     jumpURLPtr,
		SentAt:      time.Now().UTC().Format(time.RFC3339),
	}

	entry.ResultCh <- Result{SessionID: sessionID, Record: record}
}

// routePlatform implements the method-classification routing rule: when
// Telegram is configured, odd-numbered parts go to Backend A and
// even-numbered parts go to Backend B; otherwise every part stays on
// Backend A.
func routePlatform(partNum int, telegramEnabled bool) state.Platform {
	if !telegramEnabled {
		return state.PlatformA
	}
	if partNum%2 == 1 {
		return state.PlatformA
	}
	return state.PlatformB
}

// inputLimitFor derives the byte threshold at which the drain loop cuts a
// part: the smaller of Backend A's and (if enabled) Backend B's budget,
// each the backend's absolute cap shrunk by the safety ratio (spec.md
// §4.5).
func inputLimitFor(guildLimit, tgLimit int64, telegramEnabled bool, safeRatio float64) int64 {
	aBudget := int64(float64(guildLimit) * safeRatio)
	if !telegramEnabled {
		return aBudget
	}
	bBudget := int64(float64(tgLimit) * safeRatio)
	if bBudget < aBudget {
		return bBudget
	}
	return aBudget
}

// dispatchPart archives data and sends it to the chosen backend, retrying
// transient failures with the configured literal backoff.
func dispatchPart(ctx context.Context, partNum int, data []byte, filename, channelID, message string, platform state.Platform, guildLimit, tgLimit int64, cfg Config, deps Deps) (state.PartInfo, error) {
	archiveName := fmt.Sprintf("%s.part%d.zip", filename, partNum)
	packed, err := archive.Pack(data, archiveName, cfg.ZipCompressLevel)
	if err != nil {
		return state.PartInfo{}, apierr.BackendPermanent(err, "sender: pack part %d", partNum)
	}

	hardCap := guildLimit
	if platform == state.PlatformB {
		hardCap = tgLimit
	}
	if int64(len(packed)) > hardCap {
		return state.PartInfo{}, apierr.BackendPermanent(nil, "sender: part %d archived size %d exceeds backend limit %d, use a smaller client chunk size", partNum, len(packed), hardCap)
	}

	caption := buildCaption(filename, partNum, message)

	send := func() (state.PartInfo, error) {
		switch platform {
		case state.PlatformB:
			msgID, fileID, sendErr := deps.Telegram.SendPart(packed, archiveName, caption)
			if sendErr != nil {
				return state.PartInfo{}, sendErr
			}
			return state.PartInfo{Part: partNum, Platform: state.PlatformB, MessageID: msgID, FileID: &fileID}, nil
		default:
			msgID, jumpURL, sendErr := deps.Discord.SendPart(channelID, packed, archiveName, caption)
			if sendErr != nil {
				return state.PartInfo{}, sendErr
			}
			cid := channelID
			return state.PartInfo{Part: partNum, Platform: state.PlatformA, MessageID: msgID, ChannelID: &cid, JumpURL: &jumpURL}, nil
		}
	}

	var info state.PartInfo
	var lastErr error
	for attempt := 0; attempt < cfg.DiscordSendRetries; attempt++ {
		var sendErr error
		info, sendErr = send()
		if sendErr == nil {
			return info, nil
		}
		lastErr = sendErr
		if !apierr.IsTransient(sendErr) {
			break
		}
		if attempt < cfg.DiscordSendRetries-1 {
			select {
			case <-time.After(retry.Delay(cfg.DiscordRetryBaseDelayS, attempt)):
			case <-ctx.Done():
				return state.PartInfo{}, ctx.Err()
			}
		}
	}
	log.Printf("[SENDER] part %d failed: %v", partNum, lastErr)
	return state.PartInfo{}, lastErr
}

// buildCaption formats a part's message caption, matching
// original_source/upload.rs::build_caption. The uploader's optional
// message is appended on part 1 only.
func buildCaption(filename string, partNum int, message string) string {
	caption := fmt.Sprintf("✂️ `%s` — Phần %d", filename, partNum)
	if partNum == 1 && message != "" {
		caption += "\n" + message
	}
	return caption
}
