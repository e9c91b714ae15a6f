// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// ImageURLGuardService はスタジオフォームで指定される部屋画像URLの
// SSRF防止機能のインターフェースを定義する。
// ユーザー入力のURLをサーバー側で扱う箇所はここを必ず通す。
type ImageURLGuardService interface {
	// ValidateURL はURLの安全性を事前に検証する。
	// DNS解決を伴わない静的な検証のみを行う。危険なURLの場合はエラーを返す。
	ValidateURL(rawURL string) error

	// VerifyImage はSSRF防止機能付きのクライアントでURLへHEADリクエストを送り、
	// 到達可能かつ画像コンテンツであることを確認する。
	// DNS解決後のIPアドレスもDialerレベルで検証されるため、
	// ValidateURLを通過したホスト名がプライベートIPに解決される場合も
	// ここでブロックされる（DNS再バインディング対策）。
	VerifyImage(ctx context.Context, rawURL string) error
}

// allowedSchemes は許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// verifyTimeout は画像URLの到達確認にかける上限時間。
const verifyTimeout = 10 * time.Second

// imageURLGuard はImageURLGuardServiceの実装。
type imageURLGuard struct {
	// httpClient はsafeurlでラップされたHTTPクライアント。
	// テストでは到達確認ロジックの検証のために差し替えられる。
	httpClient *http.Client
}

// NewImageURLGuard はImageURLGuardServiceの新しいインスタンスを生成する。
func NewImageURLGuard() *imageURLGuard {
	return &imageURLGuard{
		httpClient: newSafeClient(verifyTimeout),
	}
}

// newSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
// メタデータIPへのリクエストが自動的にブロックされる。
// net.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func newSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateURL はURLの安全性を事前に検証する。
// スキーム、ホスト、IPアドレスの静的検証を行う。
// スタジオフォームの受付時、ストア書き込み前のチェックとして使用する。
func (g *imageURLGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	// IPアドレス直書きの場合: ブロック対象CIDRとの照合
	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// VerifyImage は画像URLの到達確認を行う。
// HEADリクエストで2xx応答と画像系Content-Typeを確認する。
// Content-Typeを返さないCDNがあるため、ヘッダー不在は許容する。
func (g *imageURLGuard) VerifyImage(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("image URL is not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("image URL returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return fmt.Errorf("URL does not point to an image: content type %s", contentType)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}
