// Package publicid は公開URLに使用する推測困難な識別子を生成する。
// 公開IDの生成はすべてこのパッケージを経由する。
package publicid

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Alphabet は公開IDに使用する文字集合（英数字62文字）。
	Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Length は公開IDの長さ。62^16 ≒ 4.7e28 通り。
	Length = 16

	// MinLength は受け付ける公開IDの最小長。
	MinLength = 12
)

// Generator は公開IDの生成関数。テストで差し替えるために関数型として定義する。
type Generator func() (string, error)

// Generate は暗号論的乱数源から公開IDを生成する。
// カードIDや連番からは導出しない。
func Generate() (string, error) {
	id, err := gonanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("failed to generate public id: %w", err)
	}
	return id, nil
}

// Valid は公開IDとして妥当な形式かどうかを判定する。
// 形式外の値はDBに問い合わせる前に弾く。
func Valid(id string) bool {
	if len(id) < MinLength || len(id) > 64 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z') {
			return false
		}
	}
	return true
}
