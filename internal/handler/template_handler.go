package handler

import (
	"net/http"

	"github.com/hitoshi/meishi/internal/cardtemplate"
)

// TemplateLister はカードテンプレート一覧の取得インターフェース。
type TemplateLister interface {
	List() []cardtemplate.Template
}

type templateResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	DefaultColor string `json:"defaultColor"`
}

// NewTemplateListHandler はテンプレート一覧を返すハンドラーを生成する。
// GET /api/templates
func NewTemplateListHandler(templates TemplateLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := templates.List()
		resp := make([]templateResponse, len(list))
		for i, t := range list {
			resp[i] = templateResponse{
				ID:           t.ID,
				Name:         t.Name,
				Description:  t.Description,
				DefaultColor: t.DefaultColor,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
