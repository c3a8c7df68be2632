package api

import (
	"bytes"
	"fmt"
	"net/http"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/alignify/formcoach/internal/store"
)

// chart handles GET /api/sessions/chart and renders the session history as
// an HTML page: counts per session as bars and accuracy as a line.
func (h *SessionHandler) chart(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.store.Sessions().List(f)
	if err != nil {
		h.logger.Error("list sessions for chart", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	var buf bytes.Buffer
	if err := renderHistory(&buf, sessions, string(f.Exercise)); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// renderHistory draws sessions oldest first. sessions arrive newest first.
func renderHistory(buf *bytes.Buffer, sessions []*store.Session, exercise string) error {
	ordered := slices.Clone(sessions)
	slices.Reverse(ordered)

	x := make([]string, 0, len(ordered))
	counts := make([]opts.BarData, 0, len(ordered))
	accuracy := make([]opts.LineData, 0, len(ordered))
	for _, s := range ordered {
		x = append(x, s.StartedAt.Local().Format("Jan 2 15:04"))
		counts = append(counts, opts.BarData{Name: string(s.Exercise), Value: s.Count})
		accuracy = append(accuracy, opts.LineData{Value: s.Accuracy})
	}

	subtitle := "all exercises"
	if exercise != "" {
		subtitle = exercise
	}
	subtitle = fmt.Sprintf("%s, %d sessions", subtitle, len(ordered))

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "formcoach history", Width: "100%", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "Reps and hold seconds", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("count", counts,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Accuracy (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 100}),
	)
	line.SetXAxis(x).AddSeries("accuracy", accuracy)

	page := components.NewPage()
	page.AddCharts(bar, line)

	return page.Render(buf)
}
