package portal

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spike_backend/internal/grid"
	"spike_backend/internal/profiles"
)

type availabilityView struct {
	AdvisorName     string
	ClientName      string
	ClientReference string
	WeekLabel       string
	Timezone        string
	SlotMinutes     int
	DurationMinutes int
	DayLabels       []string
	Rows            []viewRow
	Token           string
	PrevOffset      int
	NextOffset      int
	HasPrev         bool
	HasNext         bool
}

type viewRow struct {
	Label string
	Cells []viewCell
}

type viewCell struct {
	Render  bool
	Rowspan int
	Class   string
	Label   string
}

func buildAvailabilityView(g *grid.Grid, plan [][]grid.RenderCell, advisor profiles.Advisor, link linkContext, token string, weekStart time.Time, weekOffset int) availabilityView {
	v := availabilityView{
		AdvisorName:     advisor.DisplayName,
		ClientName:      link.ClientDisplayName,
		ClientReference: link.ClientReference,
		WeekLabel:       fmt.Sprintf("Week of %s", weekStart.Format("January 2, 2006")),
		Timezone:        g.HostTimezone,
		SlotMinutes:     g.SlotMinutes,
		DurationMinutes: g.RequestedDurationMinutes,
		Token:           token,
		PrevOffset:      weekOffset - 1,
		NextOffset:      weekOffset + 1,
		HasPrev:         weekOffset > minWeekOffset,
		HasNext:         weekOffset < maxWeekOffset,
	}
	for _, d := range g.Days {
		v.DayLabels = append(v.DayLabels, d.Label)
	}
	for r, rowLabel := range g.Rows {
		row := viewRow{Label: rowLabel}
		for d := range g.Days {
			rc := plan[d][r]
			if !rc.Render {
				row.Cells = append(row.Cells, viewCell{Render: false})
				continue
			}
			row.Cells = append(row.Cells, viewCell{
				Render:  true,
				Rowspan: rc.Rowspan,
				Class:   cellClass(&g.Days[d].Cells[r]),
				Label:   rc.Label,
			})
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func cellClass(c *grid.Cell) string {
	classes := []string{c.Status}
	if c.HasClientMeeting {
		classes = append(classes, "meeting", c.ClientMeetingState)
	}
	if c.HasOverlap {
		classes = append(classes, "overlap")
	}
	if c.FitsRequestedDuration {
		classes = append(classes, "fits")
	}
	return strings.Join(classes, " ")
}

func (m *Module) renderForbidden(c *gin.Context) {
	c.Status(http.StatusForbidden)
	c.Header("Content-Type", "text/html; charset=utf-8")
	_ = forbiddenTmpl.Execute(c.Writer, nil)
}

var forbiddenTmpl = template.Must(template.New("forbidden").Parse(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>Link expired</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 4rem auto; max-width: 32rem; color: #333; }
h1 { font-size: 1.4rem; }
</style>
</head>
<body>
<h1>This availability link is no longer valid</h1>
<p>The link you followed has expired or was never issued. Please reply to the
original email to request a fresh one.</p>
</body>
</html>
`))

var availabilityTmpl = template.Must(template.New("availability").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Availability - {{.AdvisorName}}</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2rem auto; max-width: 64rem; color: #222; }
h1 { font-size: 1.3rem; }
.meta { color: #666; font-size: 0.85rem; margin-bottom: 1rem; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 0.35rem 0.5rem; font-size: 0.8rem; text-align: center; }
th { background: #f7f7f7; }
td.open { background: #ffffff; }
td.open.fits { background: #e8f5e9; }
td.busy { background: #eceff1; color: #78909c; }
td.meeting.accepted { background: #c8e6c9; }
td.meeting.pending { background: #fff9c4; }
td.overlap { outline: 2px solid #e57373; outline-offset: -2px; }
.nav { margin: 1rem 0; font-size: 0.9rem; }
.nav a { margin-right: 1rem; }
.empty { color: #888; margin-top: 2rem; }
</style>
</head>
<body>
<h1>{{.AdvisorName}}'s availability</h1>
<div class="meta">
{{if .ClientName}}Prepared for {{.ClientName}}{{if .ClientReference}} ({{.ClientReference}}){{end}} · {{end}}
{{.WeekLabel}} · {{.SlotMinutes}}-minute slots
{{if .DurationMinutes}} · looking for {{.DurationMinutes}} minutes{{end}}
 · times in {{.Timezone}}
</div>
<div class="nav">
{{if .HasPrev}}<a href="?t={{.Token}}&weekOffset={{.PrevOffset}}">&larr; Previous week</a>{{end}}
{{if .HasNext}}<a href="?t={{.Token}}&weekOffset={{.NextOffset}}">Next week &rarr;</a>{{end}}
</div>
{{if .DayLabels}}
<table>
<thead>
<tr><th></th>{{range .DayLabels}}<th>{{.}}</th>{{end}}</tr>
</thead>
<tbody>
{{range .Rows}}
<tr>
<th>{{.Label}}</th>
{{range .Cells}}{{if .Render}}<td class="{{.Class}}" rowspan="{{.Rowspan}}">{{.Label}}</td>{{end}}{{end}}
</tr>
{{end}}
</tbody>
</table>
{{else}}
<p class="empty">No advising days fall in this week.</p>
{{end}}
</body>
</html>
`))
