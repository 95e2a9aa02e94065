package http

import (
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/entities"
)

var templateFuncs = template.FuncMap{
	"statusLabel": func(s entities.ReadingStatus) string {
		switch s {
		case entities.ReadingStatusToRead:
			return "To read"
		case entities.ReadingStatusReading:
			return "Reading"
		case entities.ReadingStatusRead:
			return "Read"
		}
		return string(s)
	},
	"stars": func(rating *int) string {
		if rating == nil {
			return ""
		}
		return strings.Repeat("★", *rating) + strings.Repeat("☆", 5-*rating)
	},
	"ratingIs": func(rating *int, n int) bool {
		return rating != nil && *rating == n
	},
	"readingStatuses": func() []entities.ReadingStatus {
		return entities.ReadingStatuses
	},
}

// pages renders the HTML UI. Without templates every page is answered with
// its data as JSON, which keeps handlers testable without template files.
type pages struct {
	enabled  bool
	sessions *auth.SessionManager
}

// loadTemplates installs templatesPath/*.html on router. It returns false
// when the directory holds no page templates.
func loadTemplates(router *gin.Engine, templatesPath string, log *zap.Logger) bool {
	if templatesPath == "" {
		return false
	}
	matches, err := filepath.Glob(filepath.Join(templatesPath, "*.html"))
	if err != nil || len(matches) == 0 {
		if _, statErr := os.Stat(templatesPath); statErr != nil {
			log.Warn("templates directory unavailable, pages answer with JSON", zap.String("path", templatesPath))
		}
		return false
	}
	router.SetHTMLTemplate(template.Must(template.New("").Funcs(templateFuncs).ParseFiles(matches...)))
	return true
}

// render writes the named page with the shared layout data added.
func (p *pages) render(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if !p.enabled || wantsJSON(c) {
		c.JSON(status, data)
		return
	}

	data["CurrentUser"] = auth.GetUsername(c)
	data["CSRFToken"] = auth.GetCSRFToken(c)
	data["CSRFField"] = auth.CSRFFormField
	if p.sessions != nil {
		data["Flashes"] = p.sessions.PopFlashes(c.Request)
	}
	c.HTML(status, name, data)
}

// flash queues a message for the next page. JSON clients get none.
func (p *pages) flash(c *gin.Context, category, message string) {
	if p.sessions != nil {
		p.sessions.AddFlash(c.Request, category, message)
	}
}

// redirectWithFlash finishes a form post. JSON clients get the message and status instead.
func (p *pages) redirectWithFlash(c *gin.Context, status int, location, category, message string, extra gin.H) {
	if wantsJSON(c) {
		body := gin.H{"message": message}
		for k, v := range extra {
			body[k] = v
		}
		c.JSON(status, body)
		return
	}
	p.flash(c, category, message)
	c.Redirect(http.StatusFound, location)
}
