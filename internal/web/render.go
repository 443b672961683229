// Package web renders the tarpit dashboard pages embedded under templates/.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/matst80/sshtarpit/internal/obs"
)

//go:embed templates/*.html
var pages embed.FS

var parsed = sync.OnceValue(func() *template.Template {
	return template.Must(template.New("base").Funcs(funcs).ParseFS(pages, "templates/*.html"))
})

var funcs = template.FuncMap{
	// seconds turns the float seconds used in Stats into a readable duration.
	"seconds": func(f float64) string { return (time.Duration(f) * time.Second).String() },
}

// Render executes page with data plus a .Now generation stamp. A page that
// does not exist renders the bare base layout.
func Render(w io.Writer, page string, data map[string]any) error {
	t := parsed()
	if data == nil {
		data = map[string]any{}
	}
	data["Now"] = time.Now().UTC().Format(time.RFC3339)
	if t.Lookup(page) == nil {
		obs.Debug("web.page.missing", obs.Fields{"page": page})
		page = "base"
	}
	if err := t.ExecuteTemplate(w, page, data); err != nil {
		return fmt.Errorf("render %s: %w", page, err)
	}
	return nil
}
