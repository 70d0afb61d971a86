package alert

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinpulse/conf"
	"coinpulse/pkg/utils"
)

// Telegram Bot API 推送，只用到 sendMessage 一个接口

type TelegramClient struct {
	apiBase    string
	botToken   string
	chatID     string
	httpClient *http.Client
	// 测试时调小
	retryDelay time.Duration
}

func NewTelegramClient(cfg conf.TelegramConfig) *TelegramClient {
	return &TelegramClient{
		apiBase:    cfg.ApiBase,
		botToken:   cfg.BotToken,
		chatID:     cfg.ChatId,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: time.Second,
	}
}

// Enabled 没配token时整个渠道静默跳过
func (t *TelegramClient) Enabled() bool {
	return t.botToken != "" && t.chatID != ""
}

// Send 发送Markdown消息，失败重试3次
func (t *TelegramClient) Send(ctx context.Context, text string) error {
	if !t.Enabled() {
		return nil
	}

	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "Markdown")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken)

	return utils.Retry(3, t.retryDelay, true, func() error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return fmt.Errorf("build telegram request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("send telegram message: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
			return fmt.Errorf("telegram http %d: %s", resp.StatusCode, string(body))
		}
		return nil
	})
}
