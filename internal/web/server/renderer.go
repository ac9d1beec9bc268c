package server

import (
	"html/template"
	"io"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/thomiceli/gistapi/templates"
)

type Template struct {
	templates *template.Template
}

func (t *Template) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}

func (s *Server) setRenderer() {
	fm := template.FuncMap{
		"loadedTime": func(startTime time.Time) string {
			return time.Since(startTime).Round(time.Microsecond).String()
		},
	}

	t := template.Must(template.New("t").Funcs(fm).ParseFS(templates.Files, "*.html"))
	s.echo.Renderer = &Template{
		templates: t,
	}
}
