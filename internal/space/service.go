package space

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roomstudio/internal/model"
	"github.com/hitoshi/roomstudio/internal/repository"
	"github.com/hitoshi/roomstudio/internal/security"
)

// listLimit はスペース一覧の最大件数。サイドバー表示用に最新10件のみ返す。
const listLimit = 10

// maxInstructionsLength は自由記述（追加指示）の最大文字数。
const maxInstructionsLength = 500

// View はAPIレスポンスに載せるスペースの射影。
// 内部IDや所有者情報はクライアントへ露出しない。
type View struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Submission はスタジオフォームからのスペース作成リクエスト。
type Submission struct {
	RoomType               string `json:"roomType"`
	Theme                  string `json:"theme"`
	ColorPreference        string `json:"colorPreference"`
	AdditionalInstructions string `json:"additionalInstructions"`
	ImageURL               string `json:"imageUrl"`
}

// Service はスペースの閲覧・作成のビジネスロジックを提供する。
type Service struct {
	profiles  repository.ProfileRepository
	spaces    repository.SpaceRepository
	sanitizer security.TextSanitizerService
	urlGuard  security.ImageURLGuardService
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	profiles repository.ProfileRepository,
	spaces repository.SpaceRepository,
	sanitizer security.TextSanitizerService,
	urlGuard security.ImageURLGuardService,
) *Service {
	return &Service{
		profiles:  profiles,
		spaces:    spaces,
		sanitizer: sanitizer,
		urlGuard:  urlGuard,
		now:       time.Now,
	}
}

// List は指定ユーザーのスペースを新しい順に最大10件返す。
// プロフィール行がまだ存在しない場合（Webhook未着など）は空リストを返す。
// 所有者の特定にはセッション由来のClerkユーザーIDのみを使う。
func (s *Service) List(ctx context.Context, clerkUserID string) ([]View, error) {
	profile, err := s.profiles.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		return nil, model.NewStoreError("find_profile", err)
	}
	if profile == nil {
		return []View{}, nil
	}

	spaces, err := s.spaces.ListByProfileID(ctx, profile.ID, listLimit)
	if err != nil {
		return nil, model.NewStoreError("list_spaces", err)
	}

	views := make([]View, 0, len(spaces))
	for _, sp := range spaces {
		views = append(views, View{Name: sp.Name, URL: sp.URL})
	}
	return views, nil
}

// Create はスタジオフォームの送信内容からスペースを作成する。
// カタログにない選択値と安全でない画像URLは*model.ValidationErrorで拒否する。
// スペース名はテーマと部屋種類の表示名から導出する（例: "Modern Bedroom"）。
func (s *Service) Create(ctx context.Context, clerkUserID string, sub *Submission) (*model.Space, error) {
	roomType, ok := RoomTypeByValue(sub.RoomType)
	if !ok {
		return nil, &model.ValidationError{Field: "roomType", Reason: fmt.Sprintf("unknown room type: %q", sub.RoomType)}
	}

	theme, ok := RoomThemeByValue(sub.Theme)
	if !ok {
		return nil, &model.ValidationError{Field: "theme", Reason: fmt.Sprintf("unknown theme: %q", sub.Theme)}
	}

	// 配色は任意入力
	if sub.ColorPreference != "" {
		if _, ok := ColorPreferenceByValue(sub.ColorPreference); !ok {
			return nil, &model.ValidationError{Field: "colorPreference", Reason: fmt.Sprintf("unknown color preference: %q", sub.ColorPreference)}
		}
	}

	if sub.ImageURL == "" {
		return nil, &model.ValidationError{Field: "imageUrl", Reason: "image URL is required"}
	}
	if err := s.urlGuard.ValidateURL(sub.ImageURL); err != nil {
		return nil, &model.ValidationError{Field: "imageUrl", Reason: err.Error()}
	}
	// 静的検証を通過したURLも、実際の到達確認はSSRF防止クライアント経由で行う。
	// ホスト名がプライベートIPに解決されるケースはここで弾かれる。
	if err := s.urlGuard.VerifyImage(ctx, sub.ImageURL); err != nil {
		return nil, &model.ValidationError{Field: "imageUrl", Reason: err.Error()}
	}

	// 自由記述はプレーンテキスト化してから下流（画像生成パイプライン）へ渡す
	sub.AdditionalInstructions = s.sanitizer.Sanitize(sub.AdditionalInstructions)
	if len(sub.AdditionalInstructions) > maxInstructionsLength {
		return nil, &model.ValidationError{Field: "additionalInstructions", Reason: fmt.Sprintf("instructions exceed %d characters", maxInstructionsLength)}
	}

	profile, err := s.profiles.FindByClerkID(ctx, clerkUserID)
	if err != nil {
		return nil, model.NewStoreError("find_profile", err)
	}
	if profile == nil {
		return nil, &model.ValidationError{Field: "user", Reason: "no profile for authenticated user"}
	}

	sp := &model.Space{
		ID:            uuid.New().String(),
		UserProfileID: profile.ID,
		Name:          theme.Label + " " + roomType.Label,
		URL:           sub.ImageURL,
		CreatedAt:     s.now(),
	}

	if err := s.spaces.Create(ctx, sp); err != nil {
		return nil, model.NewStoreError("create_space", err)
	}
	return sp, nil
}
