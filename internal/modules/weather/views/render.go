package views

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"time"

	"sensorhub-server/internal/modules/weather/types"
)

//go:embed templates static
var viewsFS embed.FS

var dashboardTmpl *template.Template

var funcs = template.FuncMap{
	"fmtFloat": func(v *float64) string {
		if v == nil {
			return "--"
		}
		return formatFloat(*v)
	},
	"fmtInt": func(v *int64) string {
		if v == nil {
			return "--"
		}
		return formatInt(*v)
	},
	"fmtTime": func(t *time.Time) string {
		if t == nil {
			return "--"
		}
		return t.UTC().Format("2006-01-02 15:04:05 UTC")
	},
}

// loadTemplatesFromFS loads dashboard templates from the given fs and dir.
// Used by LoadTemplates and by tests to simulate failure scenarios.
func loadTemplatesFromFS(fsys fs.FS, dir string) error {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		return err
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(sub, "*.html", "partials/*.html")
	if err != nil {
		return err
	}
	dashboardTmpl = tmpl
	return nil
}

// LoadTemplates loads embedded dashboard templates. Call during startup before
// serving requests; if it returns an error, do not start the server.
func LoadTemplates() error {
	return loadTemplatesFromFS(viewsFS, "templates")
}

// StaticFS holds the dashboard script and stylesheet, rooted so that
// "dashboard.js" resolves to static/dashboard.js.
func StaticFS() fs.FS {
	sub, err := fs.Sub(viewsFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// DashboardData is the server-rendered first paint; the script takes over from there.
type DashboardData struct {
	Latest         *types.Reading
	Stats          *types.RoundedStats
	ReadingsLimit  int
	RefreshSeconds int
	ReadingsPath   string
	StatsPath      string
	GeneratedAt    time.Time
}

func RenderDashboard(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "dashboard.html", data)
}

// RenderCards executes only the reading/stats cards partial.
func RenderCards(w io.Writer, data *DashboardData) error {
	if dashboardTmpl == nil {
		return errors.New("dashboard template not loaded: call views.LoadTemplates during startup")
	}
	return dashboardTmpl.ExecuteTemplate(w, "partials/cards.html", data)
}
