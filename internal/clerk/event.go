package clerk

import (
	"encoding/json"
	"fmt"
)

// EventType はWebhookイベントの種別。
type EventType string

const (
	EventUserCreated    EventType = "user.created"
	EventUserUpdated    EventType = "user.updated"
	EventSessionCreated EventType = "session.created"
	EventUserDeleted    EventType = "user.deleted"
)

// プライマリメールの認証手段（verification strategy）。
// プロバイダー種別とアバターURLの導出に使用する。
const (
	StrategyOAuthGoogle = "from_oauth_google"
	StrategyEmailLink   = "email_link"
)

// Event はパース済みのWebhookイベント。
// イベント種別ごとに対応するペイロードフィールドのみが非nilになるタグ付きユニオン。
// 処理対象外の種別はIgnoredがtrueになり、他のフィールドはすべてnil。
type Event struct {
	Type    EventType
	User    *UserData    // user.created / user.updated
	Session *SessionData // session.created
	Deleted *DeletedData // user.deleted
	Ignored bool
}

// UserData はuser.created / user.updatedイベントのペイロード。
// タイムスタンプはプロバイダー仕様に従いエポックミリ秒。
type UserData struct {
	ID                    string            `json:"id"`
	FirstName             *string           `json:"first_name"`
	LastName              *string           `json:"last_name"`
	ImageURL              string            `json:"image_url"`
	PrimaryEmailAddressID string            `json:"primary_email_address_id"`
	EmailAddresses        []EmailAddress    `json:"email_addresses"`
	ExternalAccounts      []ExternalAccount `json:"external_accounts"`
	CreatedAt             int64             `json:"created_at"`
	LastSignInAt          *int64            `json:"last_sign_in_at"`
}

// EmailAddress はアカウントに紐づくメールアドレス。
type EmailAddress struct {
	ID           string             `json:"id"`
	EmailAddress string             `json:"email_address"`
	Verification *EmailVerification `json:"verification"`
}

// EmailVerification はメールアドレスの認証状態。
type EmailVerification struct {
	Status   string `json:"status"`
	Strategy string `json:"strategy"`
}

// ExternalAccount はOAuthプロバイダー側のアカウント情報。
type ExternalAccount struct {
	Provider  string `json:"provider"`
	AvatarURL string `json:"avatar_url"`
}

// SessionData はsession.createdイベントのペイロード。
type SessionData struct {
	UserID string `json:"user_id"`
}

// DeletedData はuser.deletedイベントのペイロード。
type DeletedData struct {
	ID string `json:"id"`
}

// eventEnvelope はWebhookボディの外側のエンベロープ。
// dataの形はtypeごとに異なるため、パースを2段階に分ける。
type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent は署名検証済みのWebhookボディを型付きイベントにパースする。
// 未知のイベント種別はエラーではなくIgnored扱いとする。
func ParseEvent(payload []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to parse webhook envelope: %w", err)
	}

	evt := &Event{Type: EventType(env.Type)}

	switch evt.Type {
	case EventUserCreated, EventUserUpdated:
		evt.User = &UserData{}
		if err := json.Unmarshal(env.Data, evt.User); err != nil {
			return nil, fmt.Errorf("failed to parse %s data: %w", env.Type, err)
		}
	case EventSessionCreated:
		evt.Session = &SessionData{}
		if err := json.Unmarshal(env.Data, evt.Session); err != nil {
			return nil, fmt.Errorf("failed to parse %s data: %w", env.Type, err)
		}
	case EventUserDeleted:
		evt.Deleted = &DeletedData{}
		if err := json.Unmarshal(env.Data, evt.Deleted); err != nil {
			return nil, fmt.Errorf("failed to parse %s data: %w", env.Type, err)
		}
	default:
		evt.Ignored = true
	}

	return evt, nil
}

// PrimaryEmail はprimary_email_address_idに一致するメールアドレスを返す。
// 見つからない場合はnilを返す。
func (d *UserData) PrimaryEmail() *EmailAddress {
	for i := range d.EmailAddresses {
		if d.EmailAddresses[i].ID == d.PrimaryEmailAddressID {
			return &d.EmailAddresses[i]
		}
	}
	return nil
}

// VerificationStrategy はプライマリメールの認証手段を返す。
// プライマリメールまたは認証情報がない場合は空文字を返す。
func (d *UserData) VerificationStrategy() string {
	primary := d.PrimaryEmail()
	if primary == nil || primary.Verification == nil {
		return ""
	}
	return primary.Verification.Strategy
}
