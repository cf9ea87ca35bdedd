package http

import (
	"html/template"
	"net/http"
	"time"

	"spendboard/internal/chart"
	"spendboard/internal/log"
	"spendboard/internal/services"
	"spendboard/internal/session"
)

type homePage struct {
	Username       string
	SpreadsheetURL string
}

type chartView struct {
	Title string
	HTML  template.HTML
}

type dashboardPage struct {
	Loaded      bool
	RefreshedAt time.Time
	UndatedRows int
	Charts      []chartView
}

func sessionUser(r *http.Request) (string, bool) {
	return session.UsernameFromContext(r.Context())
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	username, _ := sessionUser(r)
	s.render(w, r, http.StatusOK, "home.html", homePage{Username: username, SpreadsheetURL: s.sheetURL})
}

func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()
	page := s.dashboard(r, snap, chart.ExpensePanels(snap.Expenses))
	page.UndatedRows = snap.Expenses.Stats.UndatedRows
	s.render(w, r, http.StatusOK, "plot.html", page)
}

func (s *Server) handleInvestments(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Current()
	page := s.dashboard(r, snap, chart.InvestmentPanels(snap.Investments))
	page.UndatedRows = snap.Investments.Stats.UndatedRows
	s.render(w, r, http.StatusOK, "investments.html", page)
}

// dashboard renders every panel of one snapshot. A chart that fails to draw
// is replaced by a notice so the rest of the page still shows.
func (s *Server) dashboard(r *http.Request, snap *services.Snapshot, panels []chart.Panel) dashboardPage {
	page := dashboardPage{
		Loaded:      snap.Loaded(),
		RefreshedAt: snap.RefreshedAt,
		Charts:      make([]chartView, 0, len(panels)),
	}
	for _, p := range panels {
		frag, err := s.charts.Render(snap.Version, p.Spec, p.Table)
		if err != nil {
			log.FromContext(r.Context()).WithComponent(log.ComponentChart).Error("Chart rendering failed",
				log.FieldOperation, log.OpRender,
				log.FieldChart, p.Spec.Name,
				log.FieldError, err,
			)
			frag = template.HTML(`<p class="no-data">Chart unavailable</p>`)
		}
		page.Charts = append(page.Charts, chartView{Title: p.Spec.Title, HTML: frag})
	}
	return page
}
