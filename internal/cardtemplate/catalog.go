// Package cardtemplate はカードテンプレートの一覧を提供する。
package cardtemplate

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var catalogYAML []byte

// Template はカードの見た目の種類を表す。
type Template struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	DefaultColor string `yaml:"default_color"`
}

// Catalog は利用可能なテンプレートの一覧。並び順は定義ファイルの順。
type Catalog struct {
	templates []Template
	byID      map[string]Template
}

// Load は埋め込みの定義ファイルからCatalogを構築する。
func Load() (*Catalog, error) {
	return Parse(catalogYAML)
}

// Parse はYAML定義からCatalogを構築する。IDの重複や空の一覧はエラーとする。
func Parse(data []byte) (*Catalog, error) {
	var templates []Template
	if err := yaml.Unmarshal(data, &templates); err != nil {
		return nil, fmt.Errorf("failed to parse template catalog: %w", err)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("template catalog is empty")
	}

	byID := make(map[string]Template, len(templates))
	for _, t := range templates {
		if t.ID == "" {
			return nil, fmt.Errorf("template without id: %q", t.Name)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate template id: %s", t.ID)
		}
		byID[t.ID] = t
	}
	return &Catalog{templates: templates, byID: byID}, nil
}

// MustLoad はLoadに失敗した場合にpanicする。埋め込み定義はビルド時に固定されるため起動時に使用する。
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// List はテンプレート一覧のコピーを返す。
func (c *Catalog) List() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	return out
}

// Exists は指定IDのテンプレートが存在するかを返す。
func (c *Catalog) Exists(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Default はデフォルトテンプレート（一覧の先頭）を返す。
func (c *Catalog) Default() Template {
	return c.templates[0]
}
