package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// notionDefaultBaseURL はNotion APIのベースURL。
	notionDefaultBaseURL = "https://api.notion.com/v1"
	// notionVersion はNotion-Versionヘッダに指定するAPIバージョン。
	notionVersion = "2022-06-28"
	// notionDateFormat はDateプロパティの日時フォーマット。
	notionDateFormat = "2006-01-02T15:04:05"
	// notionStatusPending は新規レポートの固定ステータス。
	notionStatusPending = "Pending"
	// notionTypeTag はTypeプロパティの固定タグ。
	notionTypeTag = "frontend"
)

// notionTimezone はDateプロパティの記録に使うタイムゾーン。
// ロードに失敗する環境向けにIST (+05:30) の固定オフセットへフォールバックする。
var notionTimezone = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
}()

// --- Notionページ作成リクエストの構造 ---

type notionCreatePageRequest struct {
	Parent     notionParent     `json:"parent"`
	Properties notionProperties `json:"properties"`
	Children   []notionBlock    `json:"children,omitempty"`
}

type notionParent struct {
	DatabaseID string `json:"database_id"`
}

type notionProperties struct {
	Error  notionTitleProp  `json:"Error"`
	Date   notionDateProp   `json:"Date"`
	Status notionStatusProp `json:"Status"`
	Type   notionSelectProp `json:"Type"`
	API    notionURLProp    `json:"API"`
}

type notionTitleProp struct {
	Title []notionText `json:"title"`
}

type notionDateProp struct {
	Date notionDate `json:"date"`
}

type notionDate struct {
	Start string `json:"start"`
}

type notionStatusProp struct {
	Status notionName `json:"status"`
}

type notionSelectProp struct {
	Select notionName `json:"select"`
}

type notionName struct {
	Name string `json:"name"`
}

type notionURLProp struct {
	URL string `json:"url"`
}

type notionBlock struct {
	Object   string          `json:"object"`
	Type     string          `json:"type"`
	Heading2 *notionRichText `json:"heading_2,omitempty"`
	Code     *notionCode     `json:"code,omitempty"`
}

type notionRichText struct {
	RichText []notionText `json:"rich_text"`
}

type notionCode struct {
	Language string       `json:"language"`
	RichText []notionText `json:"rich_text"`
}

type notionText struct {
	Type        string             `json:"type"`
	Text        notionTextContent  `json:"text"`
	Annotations *notionAnnotations `json:"annotations,omitempty"`
}

type notionTextContent struct {
	Content string `json:"content"`
}

type notionAnnotations struct {
	Color string `json:"color"`
}

// NotionSink はNotionのバグ管理データベースにページを作成するシンク。
// ページのプロパティにエラー名・日時・ステータス・エンドポイントを設定し、
// 本文にリクエスト入力とエラー詳細のコードブロックを並べる。
type NotionSink struct {
	httpClient *http.Client
	logger     *slog.Logger
	token      string
	databaseID string
	// serverAddress はレポート本文に表示するサービスの公開アドレス。
	serverAddress string
	baseURL       string           // テスト用にエンドポイントを差し替え可能
	now           func() time.Time // テスト用に時刻を差し替え可能
}

// NewNotionSink はNotionSinkの新しいインスタンスを生成する。
func NewNotionSink(httpClient *http.Client, logger *slog.Logger, token, databaseID, serverAddress string) *NotionSink {
	return &NotionSink{
		httpClient:    httpClient,
		logger:        logger,
		token:         token,
		databaseID:    databaseID,
		serverAddress: serverAddress,
		baseURL:       notionDefaultBaseURL,
		now:           time.Now,
	}
}

// Name はシンク識別名を返す。
func (s *NotionSink) Name() string {
	return "notion"
}

// Send はレポートからNotionページを作成する。
func (s *NotionSink) Send(ctx context.Context, rpt *Report) error {
	payload := notionCreatePageRequest{
		Parent:     notionParent{DatabaseID: s.databaseID},
		Properties: s.buildProperties(rpt),
		Children:   s.buildChildren(rpt),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("Notionペイロードのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/pages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", notionVersion)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Notion APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("Notion APIがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}

// buildProperties はページのプロパティを組み立てる。
// 日時はAsia/Kolkataタイムゾーンの現在時刻を記録する。
func (s *NotionSink) buildProperties(rpt *Report) notionProperties {
	now := s.now().In(notionTimezone).Format(notionDateFormat)

	return notionProperties{
		Error: notionTitleProp{
			Title: []notionText{plainText(rpt.Name)},
		},
		Date: notionDateProp{
			Date: notionDate{Start: now},
		},
		Status: notionStatusProp{
			Status: notionName{Name: notionStatusPending},
		},
		Type: notionSelectProp{
			Select: notionName{Name: notionTypeTag},
		},
		API: notionURLProp{
			URL: rpt.Endpoint,
		},
	}
}

// buildChildren はページ本文のブロック列を組み立てる。
// 構成: 入力リクエスト見出し（青）、入力のコードブロック、
// エラー詳細見出し（赤）、2000文字ごとに分割したコードブロック列、
// 解決策見出し（緑、本文は空のまま）。
func (s *NotionSink) buildChildren(rpt *Report) []notionBlock {
	inputContent := fmt.Sprintf("URL: %q\n%s", s.serverAddress, formatInputBody(rpt.InputBody))

	blocks := []notionBlock{
		headingBlock("Input request:", "blue"),
		codeBlock("json", inputContent),
		headingBlock("Error Traceback:", "red"),
	}

	for _, chunk := range chunkString(rpt.Description, maxChunkSize) {
		blocks = append(blocks, codeBlock("javascript", chunk))
	}

	blocks = append(blocks, headingBlock("Solution:", "green"))
	return blocks
}

// formatInputBody は入力がJSONであればインデント付きで整形し、
// パースできない場合はそのまま返す。
func formatInputBody(body string) string {
	var parsed any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return body
	}
	formatted, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return body
	}
	return string(formatted)
}

func plainText(content string) notionText {
	return notionText{Type: "text", Text: notionTextContent{Content: content}}
}

func headingBlock(content, color string) notionBlock {
	return notionBlock{
		Object: "block",
		Type:   "heading_2",
		Heading2: &notionRichText{
			RichText: []notionText{
				{
					Type:        "text",
					Text:        notionTextContent{Content: content},
					Annotations: &notionAnnotations{Color: color},
				},
			},
		},
	}
}

func codeBlock(language, content string) notionBlock {
	return notionBlock{
		Object: "block",
		Type:   "code",
		Code: &notionCode{
			Language: language,
			RichText: []notionText{plainText(content)},
		},
	}
}

// compile-time interface check
var _ Sink = (*NotionSink)(nil)
