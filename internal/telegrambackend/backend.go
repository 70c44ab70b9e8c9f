// Package telegrambackend is the Backend B adapter. Ported from
// original_source/telegram.rs, which deliberately avoids any
// Telegram-specific crate and talks to the Bot API with raw HTTP calls;
// this package mirrors that choice and uses only net/http and
// mime/multipart rather than a Telegram SDK.
package telegrambackend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/ThanhGoodBoy/splitvault/internal/apierr"
)

const apiBase = "https://api.telegram.org"

// Backend talks to a single bot/chat pair on the Telegram Bot API.
type Backend struct {
	Token      string
	ChatID     string
	httpClient *http.Client
}

func New(token, chatID string, httpTimeout time.Duration) *Backend {
	return &Backend{
		Token:      token,
		ChatID:     chatID,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

type sendDocumentResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		MessageID int64 `json:"message_id"`
		Document  struct {
			FileID string `json:"file_id"`
		} `json:"document"`
	} `json:"result"`
	Description string `json:"description"`
}

// SendPart uploads archived bytes as a document with a caption, returning
// the message id and file id needed for later retrieval.
func (b *Backend) SendPart(data []byte, archiveName, caption string) (messageID int64, fileID string, err error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", b.ChatID); err != nil {
		return 0, "", apierr.Internal(err, "telegrambackend: write chat_id field")
	}
	if err := writer.WriteField("caption", caption); err != nil {
		return 0, "", apierr.Internal(err, "telegrambackend: write caption field")
	}
	part, err := writer.CreateFormFile("document", archiveName)
	if err != nil {
		return 0, "", apierr.Internal(err, "telegrambackend: create form file")
	}
	if _, err := part.Write(data); err != nil {
		return 0, "", apierr.Internal(err, "telegrambackend: write document bytes")
	}
	if err := writer.Close(); err != nil {
		return 0, "", apierr.Internal(err, "telegrambackend: close multipart writer")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendDocument", apiBase, b.Token)
	req, err := http.NewRequest(http.MethodPost, endpoint, &body)
	if err != nil {
		return 0, "", apierr.Internal(err, "telegrambackend: build request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return 0, "", apierr.BackendTransient(err, "telegrambackend: sendDocument")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", apierr.BackendTransient(err, "telegrambackend: read sendDocument response")
	}

	var parsed sendDocumentResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, "", apierr.BackendTransient(err, "telegrambackend: parse sendDocument response")
	}
	if !parsed.OK {
		return 0, "", apierr.BackendPermanent(nil, "telegrambackend: sendDocument failed: %s", parsed.Description)
	}
	return parsed.Result.MessageID, parsed.Result.Document.FileID, nil
}

type getFileResponse struct {
	OK     bool `json:"ok"`
	Result struct {
		FilePath string `json:"file_path"`
	} `json:"result"`
	Description string `json:"description"`
}

// DownloadPart resolves fileID to a download path via getFile, then fetches
// the file's bytes. An empty body is a transient error.
func (b *Backend) DownloadPart(fileID string) ([]byte, error) {
	getFileURL := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", apiBase, b.Token, url.QueryEscape(fileID))
	resp, err := b.httpClient.Get(getFileURL)
	if err != nil {
		return nil, apierr.BackendTransient(err, "telegrambackend: getFile")
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, apierr.BackendTransient(err, "telegrambackend: read getFile response")
	}

	var parsed getFileResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, apierr.BackendTransient(err, "telegrambackend: parse getFile response")
	}
	if !parsed.OK {
		return nil, apierr.BackendPermanent(nil, "telegrambackend: getFile failed: %s", parsed.Description)
	}

	fileURL := fmt.Sprintf("%s/file/bot%s/%s", apiBase, b.Token, parsed.Result.FilePath)
	fileResp, err := b.httpClient.Get(fileURL)
	if err != nil {
		return nil, apierr.BackendTransient(err, "telegrambackend: download file")
	}
	defer fileResp.Body.Close()

	data, err := io.ReadAll(fileResp.Body)
	if err != nil {
		return nil, apierr.BackendTransient(err, "telegrambackend: read file body")
	}
	if len(data) == 0 {
		return nil, apierr.BackendTransient(nil, "telegrambackend: empty file body")
	}
	return data, nil
}
