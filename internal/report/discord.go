package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	// discordEmbedTitle はバグレポートEmbedの固定タイトル。
	discordEmbedTitle = "Bug report"
	// discordEmbedColor はEmbedの左端の色（赤）。
	discordEmbedColor = 0xff0000
	// discordDescriptionLimit はerror_descriptionフィールドに載せる最大文字数。
	// 詳細はNotion側に全文が残るため、Discordには冒頭のみ通知する。
	discordDescriptionLimit = 100
)

// discordPayload はDiscord WebhookへPOSTするリクエストボディ。
type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title  string         `json:"title"`
	Color  int            `json:"color"`
	Fields []discordField `json:"fields"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// DiscordSink はDiscordのWebhookへバグレポートEmbedを送信するシンク。
type DiscordSink struct {
	httpClient *http.Client
	logger     *slog.Logger
	webhookURL string
}

// NewDiscordSink はDiscordSinkの新しいインスタンスを生成する。
func NewDiscordSink(httpClient *http.Client, logger *slog.Logger, webhookURL string) *DiscordSink {
	return &DiscordSink{
		httpClient: httpClient,
		logger:     logger,
		webhookURL: webhookURL,
	}
}

// Name はシンク識別名を返す。
func (s *DiscordSink) Name() string {
	return "discord"
}

// Send はレポートをEmbed形式でWebhookへPOSTする。
// 2xx以外のステータスはエラーとして返す。
func (s *DiscordSink) Send(ctx context.Context, rpt *Report) error {
	payload := discordPayload{
		Embeds: []discordEmbed{
			{
				Title: discordEmbedTitle,
				Color: discordEmbedColor,
				Fields: []discordField{
					{Name: "api_endpoint", Value: rpt.Endpoint, Inline: true},
					{Name: "error_name", Value: rpt.Name, Inline: true},
					{Name: "error_description", Value: truncate(rpt.Description, discordDescriptionLimit), Inline: true},
				},
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Discordペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Discord Webhookの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Discord Webhookがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}

// truncate はsの先頭maxルーンを返す。マルチバイト文字の途中で切らない。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// compile-time interface check
var _ Sink = (*DiscordSink)(nil)
