package clerk

import (
	"encoding/base64"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/roomstudio/internal/model"
)

const testSecret = "whsec_MfKQ9r8GKYqrTwjUPD8ILPZIo2LaLaSw"

// newTestVerifier は時刻を固定したVerifierを生成する。
func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	v.now = func() time.Time { return now }
	return v
}

// 正しい署名が検証を通過することを検証
func TestVerifier_Verify_ValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	msgID := "msg_p5jXN8AQM9LWM0D4loKWxJek"
	sig := v.Sign(msgID, now, payload)

	if err := v.Verify(payload, msgID, strconv.FormatInt(now.Unix(), 10), sig); err != nil {
		t.Errorf("Verify failed for valid signature: %v", err)
	}
}

// 改ざんされたボディで検証が失敗することを検証
func TestVerifier_Verify_TamperedBody(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{"type":"user.created","data":{"id":"user_1"}}`)
	msgID := "msg_1"
	sig := v.Sign(msgID, now, payload)

	tampered := []byte(`{"type":"user.created","data":{"id":"user_evil"}}`)
	err := v.Verify(tampered, msgID, strconv.FormatInt(now.Unix(), 10), sig)
	if err == nil {
		t.Fatal("Verify should fail for tampered body")
	}

	var sigErr *model.SignatureError
	if !errors.As(err, &sigErr) {
		t.Errorf("error should be *model.SignatureError, got %T", err)
	}
}

// 異なる鍵による署名で検証が失敗することを検証
func TestVerifier_Verify_WrongKey(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, now)

	other, err := NewVerifier("whsec_" + base64.StdEncoding.EncodeToString([]byte("another-secret-key")))
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	payload := []byte(`{"type":"user.deleted","data":{"id":"user_1"}}`)
	sig := other.Sign("msg_1", now, payload)

	if err := v.Verify(payload, "msg_1", strconv.FormatInt(now.Unix(), 10), sig); err == nil {
		t.Error("Verify should fail for signature from a different key")
	}
}

// 許容範囲外のタイムスタンプが拒否されることを検証
func TestVerifier_Verify_TimestampTolerance(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		at      time.Time
		wantErr bool
	}{
		{"current", now, false},
		{"4 minutes old", now.Add(-4 * time.Minute), false},
		{"6 minutes old", now.Add(-6 * time.Minute), true},
		{"6 minutes in the future", now.Add(6 * time.Minute), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestVerifier(t, now)
			payload := []byte(`{"type":"session.created","data":{"user_id":"user_1"}}`)
			sig := v.Sign("msg_1", tt.at, payload)

			err := v.Verify(payload, "msg_1", strconv.FormatInt(tt.at.Unix(), 10), sig)
			if tt.wantErr && err == nil {
				t.Error("Verify should reject timestamp outside tolerance")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Verify failed: %v", err)
			}
		})
	}
}

// 数値でないタイムスタンプが拒否されることを検証
func TestVerifier_Verify_InvalidTimestamp(t *testing.T) {
	v := newTestVerifier(t, time.Unix(1700000000, 0))

	err := v.Verify([]byte(`{}`), "msg_1", "yesterday", "v1,deadbeef")
	if err == nil {
		t.Fatal("Verify should reject a non-numeric timestamp")
	}
}

// 鍵ローテーション中の複数署名のうち1つでも一致すれば成功することを検証
func TestVerifier_Verify_MultipleSignatures(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{"type":"user.updated","data":{"id":"user_1"}}`)
	valid := v.Sign("msg_1", now, payload)

	// 旧鍵の署名（不一致）を前に並べる
	combined := "v1,b2xka2V5c2lnbmF0dXJl " + valid
	if err := v.Verify(payload, "msg_1", strconv.FormatInt(now.Unix(), 10), combined); err != nil {
		t.Errorf("Verify should accept when any signature matches: %v", err)
	}
}

// 未知のバージョンプレフィックスの署名のみの場合は失敗することを検証
func TestVerifier_Verify_UnknownVersionOnly(t *testing.T) {
	now := time.Unix(1700000000, 0)
	v := newTestVerifier(t, now)

	payload := []byte(`{}`)
	sig := v.Sign("msg_1", now, payload)
	v2 := "v2," + sig[len("v1,"):]

	if err := v.Verify(payload, "msg_1", strconv.FormatInt(now.Unix(), 10), v2); err == nil {
		t.Error("Verify should ignore unknown signature versions")
	}
}

// whsec_プレフィックスの有無どちらのシークレットも受け付けることを検証
func TestNewVerifier_SecretFormats(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("super-secret"))

	if _, err := NewVerifier("whsec_" + raw); err != nil {
		t.Errorf("NewVerifier with prefix failed: %v", err)
	}
	if _, err := NewVerifier(raw); err != nil {
		t.Errorf("NewVerifier without prefix failed: %v", err)
	}
	if _, err := NewVerifier("whsec_%%%not-base64%%%"); err == nil {
		t.Error("NewVerifier should reject invalid base64")
	}
}
