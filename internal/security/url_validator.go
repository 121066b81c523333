package security

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// URL検証エラー
var (
	ErrInvalidURL       = errors.New("invalid url")
	ErrUnsupportedURL   = errors.New("unsupported url scheme")
	ErrPrivateURLTarget = errors.New("url points to a private address")
)

// allowedSchemes はカードに登録できるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は公開カードから参照させないネットワーク範囲。
// パッケージ初期化時に1回だけパースする。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
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

// idnaProfile はホスト名の検証・ASCII変換に使用するプロファイル。
var idnaProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.StrictDomainName(false),
)

// NormalizeURL はカードに保存するURL（Webサイト、SNS、プロフィール画像）を検証し正規化する。
//
//   - スキームはhttp/httpsのみ
//   - ホスト名は必須で、国際化ドメイン名はPunycodeに変換する
//   - IPアドレスリテラルの場合はプライベート・ループバック等を拒否する
//
// 名前解決は行わない（このサービスは登録されたURLへ自らリクエストしない）。
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if !isAllowedScheme(scheme) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURL, u.Scheme)
	}
	u.Scheme = scheme

	if u.User != nil {
		return "", fmt.Errorf("%w: credentials in url", ErrInvalidURL)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return "", fmt.Errorf("%w: %s", ErrPrivateURLTarget, host)
		}
		return u.String(), nil
	}

	ascii, err := idnaProfile.ToASCII(strings.TrimSuffix(host, "."))
	if err != nil {
		return "", fmt.Errorf("%w: host %q: %v", ErrInvalidURL, host, err)
	}
	if ascii == "" || ascii == "localhost" || strings.HasSuffix(ascii, ".localhost") {
		return "", fmt.Errorf("%w: %s", ErrPrivateURLTarget, host)
	}
	if port := u.Port(); port != "" {
		u.Host = net.JoinHostPort(ascii, port)
	} else {
		u.Host = ascii
	}
	return u.String(), nil
}

func isAllowedScheme(scheme string) bool {
	for _, s := range allowedSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
