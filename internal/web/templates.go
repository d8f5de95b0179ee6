package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/nhle/showbot/internal/cohuman"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type startPage struct {
	Authorized bool
	Configured bool
}

type dashboardPage struct {
	Shows       []cohuman.Project
	Message     string
	MessageType string // "success" or "error"
}

type configErrorPage struct {
	Missing []string
}

type resultPage struct {
	Title  string
	Result any
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, name, data); err != nil {
		s.Logger.Error("rendering page", "page", name, "err", err)
	}
}
