package grid

// RenderCell is one entry of the merge span plan, aligned with the grid's
// (day, row) cells. Hidden cells carry Render=false and Rowspan=0.
type RenderCell struct {
	Rowspan int    `json:"rowspan"`
	Render  bool   `json:"render"`
	Label   string `json:"label"`
}

type mergeKey struct {
	status        string
	meetingState  string
	hasOverlap    bool
	meetingTitle  string
	meetingStatus string
}

// MergePlan collapses vertical runs of identical cells per day column. Only
// cells holding exactly one client meeting merge; open and plain-busy cells
// render individually.
func MergePlan(g *Grid) [][]RenderCell {
	plan := make([][]RenderCell, len(g.Days))
	for d := range g.Days {
		cells := g.Days[d].Cells
		col := make([]RenderCell, len(cells))
		for r := 0; r < len(cells); {
			if !mergeable(&cells[r]) {
				col[r] = RenderCell{Rowspan: 1, Render: true, Label: cellLabel(&cells[r])}
				r++
				continue
			}
			key := keyOf(&cells[r])
			span := 1
			for r+span < len(cells) && mergeable(&cells[r+span]) && keyOf(&cells[r+span]) == key {
				span++
			}
			col[r] = RenderCell{Rowspan: span, Render: true, Label: meetingLabel(&cells[r])}
			for k := 1; k < span; k++ {
				col[r+k] = RenderCell{Render: false}
			}
			r += span
		}
		plan[d] = col
	}
	return plan
}

func mergeable(c *Cell) bool {
	return len(c.Meetings) == 1
}

func keyOf(c *Cell) mergeKey {
	return mergeKey{
		status:        c.Status,
		meetingState:  c.ClientMeetingState,
		hasOverlap:    c.HasOverlap,
		meetingTitle:  c.Meetings[0].Title,
		meetingStatus: c.Meetings[0].Status,
	}
}

func cellLabel(c *Cell) string {
	if c.HasClientMeeting {
		return meetingLabel(c)
	}
	if c.Status == StatusBusy {
		return "Busy"
	}
	return c.SlotStartLocal.Format("3:04 PM")
}

// meetingLabel shows the meeting's own bounds in the host timezone, not the
// merged cells' bounds, so a meeting that starts mid-slot reads correctly.
func meetingLabel(c *Cell) string {
	m := c.Meetings[0]
	loc := c.SlotStartLocal.Location()
	return m.Start.In(loc).Format("3:04 PM") + " - " + m.End.In(loc).Format("3:04 PM")
}
