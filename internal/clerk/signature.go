// Package clerk はIDプロバイダー（Clerk）からのWebhookイベントの
// 署名検証とペイロードの型付きパースを提供する。
package clerk

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/roomstudio/internal/model"
)

// Webhookリクエストの署名ヘッダー名。
const (
	HeaderID        = "svix-id"
	HeaderTimestamp = "svix-timestamp"
	HeaderSignature = "svix-signature"
)

// secretPrefix は共有シークレットの先頭に付くプレフィックス。
// プレフィックス以降がbase64エンコードされたHMAC鍵になっている。
const secretPrefix = "whsec_"

// defaultTolerance はタイムスタンプの許容ずれ。
// これより古い（または未来の）タイムスタンプはリプレイとみなして拒否する。
const defaultTolerance = 5 * time.Minute

// Verifier はWebhookリクエストの署名を検証する。
// 署名対象は "{id}.{timestamp}.{body}" で、HMAC-SHA256をbase64エンコードした値が
// svix-signatureヘッダーにスペース区切りの "v1,<base64>" 形式で複数含まれ得る。
type Verifier struct {
	key       []byte
	tolerance time.Duration
	now       func() time.Time // テストで時刻を固定するためのフック
}

// NewVerifier は共有シークレットからVerifierを生成する。
// シークレットはwhsec_プレフィックス付きでもプレフィックスなしのbase64でもよい。
func NewVerifier(secret string) (*Verifier, error) {
	raw := strings.TrimPrefix(secret, secretPrefix)
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook secret: %w", err)
	}
	return &Verifier{
		key:       key,
		tolerance: defaultTolerance,
		now:       time.Now,
	}, nil
}

// Verify はペイロードと署名ヘッダー値の組を検証する。
// 検証に失敗した場合は*model.SignatureErrorを返す。
// ヘッダー欠落のチェックは呼び出し側（ハンドラー）の責務とする。
func (v *Verifier) Verify(payload []byte, msgID, timestamp, signatures string) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return &model.SignatureError{Reason: "invalid timestamp"}
	}

	diff := v.now().Sub(time.Unix(ts, 0))
	if diff > v.tolerance || diff < -v.tolerance {
		return &model.SignatureError{Reason: "timestamp outside of tolerance"}
	}

	expected := v.sign(msgID, timestamp, payload)

	// ヘッダーには鍵ローテーション中の複数署名が含まれ得る。いずれか一致で成功。
	for _, entry := range strings.Split(signatures, " ") {
		version, sig, found := strings.Cut(entry, ",")
		if !found || version != "v1" {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) == 1 {
			return nil
		}
	}

	return &model.SignatureError{Reason: "no matching signature"}
}

// Sign はペイロードに対する "v1,<base64>" 形式の署名を生成する。
// テストでの正規リクエストの組み立てにも使用する。
func (v *Verifier) Sign(msgID string, at time.Time, payload []byte) string {
	return "v1," + v.sign(msgID, strconv.FormatInt(at.Unix(), 10), payload)
}

// sign は署名対象文字列のHMAC-SHA256をbase64エンコードして返す。
func (v *Verifier) sign(msgID, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, v.key)
	fmt.Fprintf(mac, "%s.%s.", msgID, timestamp)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
