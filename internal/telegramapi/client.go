package telegramapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.telegram.org"

	defaultMaxDownloadBytes = 20 * 1024 * 1024
)

type Options struct {
	HTTPClient *http.Client
	BaseURL    string
	Token      string
	// RequestsPerSecond throttles outgoing calls client-side; 0 disables it.
	RequestsPerSecond float64
	MaxDownloadBytes  int64
}

// Client speaks the Telegram Bot API over HTTPS.
type Client struct {
	http             *http.Client
	baseURL          string
	token            string
	limiter          *rate.Limiter
	maxDownloadBytes int64
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		http:             httpClient,
		baseURL:          baseURL,
		token:            strings.TrimSpace(opts.Token),
		maxDownloadBytes: opts.MaxDownloadBytes,
	}
	if c.maxDownloadBytes <= 0 {
		c.maxDownloadBytes = defaultMaxDownloadBytes
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return c
}

// CloseIdleConnections drops pooled connections; used when a session is torn down.
func (c *Client) CloseIdleConnections() {
	c.http.CloseIdleConnections()
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// redact strips the bot token from transport errors, which embed the request URL.
func (c *Client) redact(err error) error {
	if err == nil || c.token == "" {
		return err
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, c.token, "<token>")
	}
	return err
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	var body io.Reader = http.NoBody
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("telegram %s: encode: %w", method, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL(method), body)
	if err != nil {
		return c.redact(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return c.redact(err)
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	var env envelope
	_ = json.Unmarshal(raw, &env)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.OK {
		return &RequestError{
			Method:      method,
			StatusCode:  resp.StatusCode,
			ErrorCode:   env.ErrorCode,
			Description: env.Description,
			Body:        strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if len(env.Result) == 0 {
		return fmt.Errorf("telegram %s: missing result", method)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram %s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var out User
	if err := c.call(ctx, "getMe", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUpdates long-polls for new updates and returns the next offset to ask for.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, int64, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	params := map[string]any{
		"timeout":         secs,
		"allowed_updates": []string{"message"},
	}
	if offset > 0 {
		params["offset"] = offset
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	var out []Update
	if err := c.call(reqCtx, "getUpdates", params, &out); err != nil {
		return nil, offset, err
	}

	next := offset
	for _, u := range out {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out, next, nil
}

// DropPendingUpdates discards updates queued while the bot was offline.
func (c *Client) DropPendingUpdates(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": true}, nil)
}

func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand, scope *BotCommandScope) error {
	return c.call(ctx, "setMyCommands", setMyCommandsRequest{Commands: commands, Scope: scope}, nil)
}

func (c *Client) GetMyCommands(ctx context.Context, scope *BotCommandScope) ([]BotCommand, error) {
	var out []BotCommand
	if err := c.call(ctx, "getMyCommands", getMyCommandsRequest{Scope: scope}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStickerSet(ctx context.Context, name string) (*StickerSet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("missing sticker set name")
	}
	var out StickerSet
	if err := c.call(ctx, "getStickerSet", map[string]string{"name": name}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateNewStickerSet(ctx context.Context, userID int64, name, title string, stickers []InputSticker, stickerType string) error {
	if len(stickers) == 0 {
		return fmt.Errorf("createNewStickerSet: at least one sticker is required")
	}
	return c.call(ctx, "createNewStickerSet", createNewStickerSetRequest{
		UserID:      userID,
		Name:        name,
		Title:       title,
		Stickers:    stickers,
		StickerType: strings.TrimSpace(stickerType),
	}, nil)
}

func (c *Client) AddStickerToSet(ctx context.Context, userID int64, name string, sticker InputSticker) error {
	return c.call(ctx, "addStickerToSet", addStickerToSetRequest{
		UserID:  userID,
		Name:    name,
		Sticker: sticker,
	}, nil)
}

func (c *Client) GetFile(ctx context.Context, fileID string) (*File, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return nil, fmt.Errorf("missing file_id")
	}
	var out File
	if err := c.call(ctx, "getFile", map[string]string{"file_id": fileID}, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.FilePath) == "" {
		return nil, fmt.Errorf("telegram getFile: missing file_path")
	}
	return &out, nil
}

// DownloadFile streams a file previously resolved with GetFile into w.
func (c *Client) DownloadFile(ctx context.Context, filePath string, w io.Writer) (int64, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return 0, fmt.Errorf("missing file_path")
	}
	if w == nil {
		return 0, fmt.Errorf("missing destination writer")
	}
	if err := c.wait(ctx); err != nil {
		return 0, err
	}

	u := fmt.Sprintf("%s/file/bot%s/%s", c.baseURL, c.token, strings.TrimLeft(filePath, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, c.redact(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, c.redact(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return 0, &RequestError{
			Method:     "download",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	n, err := io.Copy(w, io.LimitReader(resp.Body, c.maxDownloadBytes+1))
	if err != nil {
		return n, c.redact(err)
	}
	if n > c.maxDownloadBytes {
		return n, fmt.Errorf("telegram file too large (>%d bytes)", c.maxDownloadBytes)
	}
	return n, nil
}

func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (int64, error) {
	if strings.TrimSpace(req.Text) == "" {
		return 0, fmt.Errorf("sendMessage: empty text")
	}
	var out Message
	if err := c.call(ctx, "sendMessage", req, &out); err != nil {
		return 0, err
	}
	return out.MessageID, nil
}

func (c *Client) EditMessageText(ctx context.Context, req EditMessageTextRequest) error {
	if req.MessageID == 0 {
		return fmt.Errorf("editMessageText: missing message_id")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fmt.Errorf("editMessageText: empty text")
	}
	// The result is the edited Message (or true for inline messages); only ok matters.
	return c.call(ctx, "editMessageText", req, nil)
}
