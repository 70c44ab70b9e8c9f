package reassemble

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
	"github.com/ThanhGoodBoy/splitvault/internal/archive"
	"github.com/ThanhGoodBoy/splitvault/internal/state"
)

type fakeDiscordFetcher struct {
	urls map[int64]string
	data map[string][]byte
}

func (f *fakeDiscordFetcher) FetchAttachmentURL(channelID string, messageID int64) (string, error) {
	return f.urls[messageID], nil
}

func (f *fakeDiscordFetcher) DownloadURL(url string) ([]byte, error) {
	return f.data[url], nil
}

type fakeTelegramFetcher struct {
	data map[string][]byte
}

func (f *fakeTelegramFetcher) DownloadPart(fileID string) ([]byte, error) {
	return f.data[fileID], nil
}

func drain(t *testing.T, dataCh <-chan []byte, errCh <-chan error) ([]byte, error) {
	t.Helper()
	var out []byte
	for {
		select {
		case chunk, ok := <-dataCh:
			if !ok {
				select {
				case err := <-errCh:
					return out, err
				case <-time.After(time.Second):
					return out, nil
				}
			}
			out = append(out, chunk...)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out draining stream")
		}
	}
}

func TestStreamSingleDiscordPartUnpacksArchive(t *testing.T) {
	packed, err := archive.Pack([]byte("hello world"), "file.part1.zip", 0)
	require.NoError(t, err)

	channelID := "chan1"
	deps := Deps{
		Discord: &fakeDiscordFetcher{
			urls: map[int64]string{1: "https://cdn/1"},
			data: map[string][]byte{"https://cdn/1": packed},
		},
	}
	record := state.FileRecord{
		PartsInfo: []state.PartInfo{
			{Part: 1, Platform: state.PlatformA, MessageID: 1, ChannelID: &channelID},
		},
	}

	dataCh, errCh := Stream(context.Background(), record, deps, Config{ReadBufferBytes: 4})
	out, err := drain(t, dataCh, errCh)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(out))
}

func TestStreamMultiplePartsInOrder(t *testing.T) {
	p1, _ := archive.Pack([]byte("AAA"), "f.part1.zip", 0)
	p2, _ := archive.Pack([]byte("BBB"), "f.part2.zip", 0)

	channelID := "chan1"
	deps := Deps{
		Discord: &fakeDiscordFetcher{
			urls: map[int64]string{1: "u1", 2: "u2"},
			data: map[string][]byte{"u1": p1, "u2": p2},
		},
	}
	record := state.FileRecord{
		PartsInfo: []state.PartInfo{
			{Part: 2, Platform: state.PlatformA, MessageID: 2, ChannelID: &channelID},
			{Part: 1, Platform: state.PlatformA, MessageID: 1, ChannelID: &channelID},
		},
	}

	dataCh, errCh := Stream(context.Background(), record, deps, Config{ReadBufferBytes: 1024})
	out, err := drain(t, dataCh, errCh)
	require.NoError(t, err)
	require.Equal(t, "AAABBB", string(out))
}

func TestStreamTelegramPartPassesRawLegacyThrough(t *testing.T) {
	fileID := "tg-file-1"
	deps := Deps{
		Telegram: &fakeTelegramFetcher{
			data: map[string][]byte{fileID: []byte("raw bytes, not a zip")},
		},
	}
	record := state.FileRecord{
		PartsInfo: []state.PartInfo{
			{Part: 1, Platform: state.PlatformB, MessageID: 5, FileID: &fileID},
		},
	}

	dataCh, errCh := Stream(context.Background(), record, deps, Config{ReadBufferBytes: 1024})
	out, err := drain(t, dataCh, errCh)
	require.NoError(t, err)
	require.Equal(t, "raw bytes, not a zip", string(out))
}

func TestStreamLegacyMessageIDsSynthesizePartInfo(t *testing.T) {
	packed, _ := archive.Pack([]byte("legacy"), "f.zip", 0)
	channelID := "chan9"
	record := state.FileRecord{
		ChannelID:  channelID,
		MessageIDs: []int64{42},
	}
	deps := Deps{
		Discord: &fakeDiscordFetcher{
			urls: map[int64]string{42: "u42"},
			data: map[string][]byte{"u42": packed},
		},
	}

	dataCh, errCh := Stream(context.Background(), record, deps, Config{ReadBufferBytes: 1024})
	out, err := drain(t, dataCh, errCh)
	require.NoError(t, err)
	require.Equal(t, "legacy", string(out))
}

// flakyDiscordFetcher fails transiently a fixed number of times before
// succeeding, to exercise fetchPartWithRetry's backoff loop.
type flakyDiscordFetcher struct {
	failuresLeft int
	data         []byte
	calls        int
}

func (f *flakyDiscordFetcher) FetchAttachmentURL(channelID string, messageID int64) (string, error) {
	return "https://cdn/part", nil
}

func (f *flakyDiscordFetcher) DownloadURL(url string) ([]byte, error) {
	f.calls++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return nil, apierr.BackendTransient(nil, "temporary network blip")
	}
	return f.data, nil
}

func TestStreamRetriesTransientDownloadFailure(t *testing.T) {
	packed, err := archive.Pack([]byte("retried"), "file.part1.zip", 0)
	require.NoError(t, err)

	channelID := "chan1"
	fetcher := &flakyDiscordFetcher{failuresLeft: 2, data: packed}
	deps := Deps{Discord: fetcher}
	record := state.FileRecord{
		PartsInfo: []state.PartInfo{
			{Part: 1, Platform: state.PlatformA, MessageID: 1, ChannelID: &channelID},
		},
	}

	dataCh, errCh := Stream(context.Background(), record, deps, Config{ReadBufferBytes: 1024, DownloadRetry: 3, DownloadRetryBaseS: 1})
	out, err := drain(t, dataCh, errCh)
	require.NoError(t, err)
	require.Equal(t, "retried", string(out))
	require.Equal(t, 3, fetcher.calls)
}

func TestStreamGivesUpAfterExhaustingDownloadRetries(t *testing.T) {
	channelID := "chan1"
	fetcher := &flakyDiscordFetcher{failuresLeft: 99}
	deps := Deps{Discord: fetcher}
	record := state.FileRecord{
		PartsInfo: []state.PartInfo{
			{Part: 1, Platform: state.PlatformA, MessageID: 1, ChannelID: &channelID},
		},
	}

	dataCh, errCh := Stream(context.Background(), record, deps, Config{ReadBufferBytes: 1024, DownloadRetry: 2, DownloadRetryBaseS: 1})
	_, err := drain(t, dataCh, errCh)
	require.Error(t, err)
	require.Equal(t, 2, fetcher.calls)
}

// permanentFailureFetcher returns a non-transient error so the retry loop
// must abort on the first attempt.
type permanentFailureFetcher struct {
	calls int
}

func (f *permanentFailureFetcher) FetchAttachmentURL(channelID string, messageID int64) (string, error) {
	return "https://cdn/part", nil
}

func (f *permanentFailureFetcher) DownloadURL(url string) ([]byte, error) {
	f.calls++
	return nil, apierr.BackendPermanent(nil, "message has no attachment")
}

func TestStreamDoesNotRetryPermanentDownloadFailure(t *testing.T) {
	channelID := "chan1"
	fetcher := &permanentFailureFetcher{}
	deps := Deps{Discord: fetcher}
	record := state.FileRecord{
		PartsInfo: []state.PartInfo{
			{Part: 1, Platform: state.PlatformA, MessageID: 1, ChannelID: &channelID},
		},
	}

	dataCh, errCh := Stream(context.Background(), record, deps, Config{ReadBufferBytes: 1024, DownloadRetry: 5, DownloadRetryBaseS: 1})
	_, err := drain(t, dataCh, errCh)
	require.Error(t, err)
	require.Equal(t, 1, fetcher.calls)
}
