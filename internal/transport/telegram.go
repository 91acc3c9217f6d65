package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	pollTimeout    = 30 * time.Second
	sendTimeout    = 10 * time.Second
)

// BotClient talks to a Telegram-style Bot API over HTTP. It implements
// Sender and drives the inbound long-poll loop.
type BotClient struct {
	token   string
	baseURL string
	http    *http.Client

	username string
	offset   int64
}

func NewBotClient(token string) *BotClient {
	return &BotClient{
		token:   token,
		baseURL: defaultAPIBase,
		http:    &http.Client{Timeout: pollTimeout + sendTimeout},
	}
}

// SetBaseURL overrides the API base, used by tests against httptest servers.
func (c *BotClient) SetBaseURL(base string) { c.baseURL = base }

func (c *BotClient) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *BotClient) call(ctx context.Context, method string, payload interface{}, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return err
	}
	if !apiResp.OK {
		return fmt.Errorf("%s: %s", method, apiResp.Description)
	}
	if result != nil {
		return json.Unmarshal(apiResp.Result, result)
	}
	return nil
}

// Me fetches and caches the bot's username. Also serves as a token check.
func (c *BotClient) Me(ctx context.Context) (string, error) {
	if c.username != "" {
		return c.username, nil
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := c.call(ctx, "getMe", map[string]interface{}{}, &me); err != nil {
		return "", err
	}
	c.username = me.Username
	return me.Username, nil
}

// ValidateToken checks a dedicated bot token against the platform without
// attaching it to this client.
func ValidateToken(ctx context.Context, token string) bool {
	tc := NewBotClient(token)
	tc.http = &http.Client{Timeout: sendTimeout}
	_, err := tc.Me(ctx)
	return err == nil
}

func (c *BotClient) SendText(ctx context.Context, chatID int64, text string, opts *SendOpts) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	if opts != nil {
		if opts.Markdown {
			payload["parse_mode"] = "Markdown"
		}
		if len(opts.Buttons) > 0 {
			payload["reply_markup"] = inlineKeyboard(opts.Buttons)
		}
	}

	if err := c.call(ctx, "sendMessage", payload, nil); err != nil {
		return &DeliveryError{ChatID: chatID, Err: err}
	}
	return nil
}

func (c *BotClient) SendDocument(ctx context.Context, chatID int64, data []byte, filename, caption string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("chat_id", fmt.Sprintf("%d", chatID))
	if caption != "" {
		_ = mw.WriteField("caption", caption)
	}
	fw, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendDocument"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return &DeliveryError{ChatID: chatID, Err: err}
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return &DeliveryError{ChatID: chatID, Err: err}
	}
	if !apiResp.OK {
		return &DeliveryError{ChatID: chatID, Err: fmt.Errorf("sendDocument: %s", apiResp.Description)}
	}
	return nil
}

// FetchFile downloads a platform file by its reference, used to mirror
// uploaded logos.
func (c *BotClient) FetchFile(ctx context.Context, fileRef string) ([]byte, error) {
	var file struct {
		FilePath string `json:"file_path"`
	}
	if err := c.call(ctx, "getFile", map[string]interface{}{"file_id": fileRef}, &file); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// --- Inbound long polling ---

type update struct {
	UpdateID int64 `json:"update_id"`
	Message  *struct {
		MessageID int64 `json:"message_id"`
		From      *tgUser `json:"from"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text  string `json:"text"`
		Photo []struct {
			FileID string `json:"file_id"`
		} `json:"photo"`
		ReplyToMessage *struct {
			MessageID int64 `json:"message_id"`
		} `json:"reply_to_message"`
	} `json:"message"`
	CallbackQuery *struct {
		ID      string  `json:"id"`
		From    *tgUser `json:"from"`
		Data    string  `json:"data"`
		Message *struct {
			Chat struct {
				ID int64 `json:"id"`
			} `json:"chat"`
		} `json:"message"`
	} `json:"callback_query"`
}

type tgUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// Poll runs the long-poll loop until ctx is cancelled, handing each
// normalized event to handle. Poll errors are logged and backed off,
// never fatal.
func (c *BotClient) Poll(ctx context.Context, handle func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var updates []update
		err := c.call(ctx, "getUpdates", map[string]interface{}{
			"offset":  c.offset,
			"timeout": int(pollTimeout.Seconds()),
		}, &updates)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("getUpdates failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			ev, ok := c.toEvent(ctx, u)
			if !ok {
				continue
			}
			handle(ev)
		}
	}
}

func (c *BotClient) toEvent(ctx context.Context, u update) (Event, bool) {
	if u.Message != nil && u.Message.From != nil {
		ev := Event{
			SenderID:  u.Message.From.ID,
			ChatID:    u.Message.Chat.ID,
			Text:      u.Message.Text,
			FirstName: u.Message.From.FirstName,
			LastName:  u.Message.From.LastName,
			Handle:    u.Message.From.Username,
		}
		if len(u.Message.Photo) > 0 {
			// Last entry is the largest size.
			ev.PhotoRef = u.Message.Photo[len(u.Message.Photo)-1].FileID
		}
		if u.Message.ReplyToMessage != nil {
			ev.ReplyToID = u.Message.ReplyToMessage.MessageID
		}
		if cmd, arg := ev.Command(); cmd == "start" && arg != "" {
			ev.DeepLinkArg = arg
		}
		return ev, true
	}

	if u.CallbackQuery != nil && u.CallbackQuery.From != nil && u.CallbackQuery.Message != nil {
		// Ack the button press so the client stops its spinner.
		_ = c.call(ctx, "answerCallbackQuery", map[string]interface{}{
			"callback_query_id": u.CallbackQuery.ID,
		}, nil)

		return Event{
			SenderID:     u.CallbackQuery.From.ID,
			ChatID:       u.CallbackQuery.Message.Chat.ID,
			CallbackData: u.CallbackQuery.Data,
			FirstName:    u.CallbackQuery.From.FirstName,
			LastName:     u.CallbackQuery.From.LastName,
			Handle:       u.CallbackQuery.From.Username,
		}, true
	}

	return Event{}, false
}

func inlineKeyboard(rows [][]Button) map[string]interface{} {
	keyboard := make([][]map[string]string, 0, len(rows))
	for _, row := range rows {
		line := make([]map[string]string, 0, len(row))
		for _, b := range row {
			btn := map[string]string{"text": b.Label}
			if b.URL != "" {
				btn["url"] = b.URL
			} else {
				btn["callback_data"] = b.Data
			}
			line = append(line, btn)
		}
		keyboard = append(keyboard, line)
	}
	return map[string]interface{}{"inline_keyboard": keyboard}
}
