package security

import "testing"

func TestSanitizeText(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "空文字列", input: "", want: ""},
		{name: "平文はそのまま", input: "Software engineer", want: "Software engineer"},
		{name: "前後の空白を除去", input: "  Ada Lovelace \n", want: "Ada Lovelace"},
		{name: "タグを除去", input: "<b>Ada</b> <i>Lovelace</i>", want: "Ada Lovelace"},
		{name: "scriptは中身ごと除去", input: `Hello<script>alert("x")</script>`, want: "Hello"},
		{name: "イベント属性を含むタグを除去", input: `<img src=x onerror="alert(1)">Bio`, want: "Bio"},
		{name: "アンパサンドを維持", input: "AT&T", want: "AT&T"},
		{name: "日本語", input: "<p>株式会社テスト</p>", want: "株式会社テスト"},
		{name: "山括弧のみの文字列", input: "a < b", want: "a < b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeText(tt.input)
			if got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeText_Idempotent は2回適用しても結果が変わらないことを検証する。
func TestSanitizeText_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	inputs := []string{
		"<p>Hello <strong>world</strong></p>",
		"Tom & Jerry",
		`<a href="javascript:alert(1)">click</a>`,
	}
	for _, in := range inputs {
		once := sanitizer.SanitizeText(in)
		twice := sanitizer.SanitizeText(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizer = NewTextSanitizer()
}
