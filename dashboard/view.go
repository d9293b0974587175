package dashboard

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hako/durafmt"

	"github.com/researchfund/fundboard/internal/activity"
	"github.com/researchfund/fundboard/internal/store"
)

// DefaultTitle is used when no title is configured.
const DefaultTitle = "Research Fund Admin"

// Input is everything the page shows, as held by the server.
type Input struct {
	Title        string
	Statuses     store.List
	Loading      bool
	Err          error
	Activity     []activity.Event
	Settings     []Section
	Contributors []Contributor
	UpdatedAt    time.Time
}

// Contributor is one row of the contributor table.
type Contributor struct {
	Name  string
	Role  string
	Email string
}

// Section is one settings card.
type Section struct {
	Title       string
	Description string
	Items       []Item
}

// Item is a label/value row inside a settings card.
type Item struct {
	Label string
	Value string
}

// StatusRow is one line of the status table.
type StatusRow struct {
	ID   string
	Code string
	Name string
}

// ActivityRow is one formatted upload event.
type ActivityRow struct {
	Route    string
	FileName string
	Size     string
	Status   string
	Accepted bool
	When     string
	At       string
}

// View is the template data for the dashboard page.
type View struct {
	Title        string
	Loading      bool
	Error        string
	Statuses     []StatusRow
	Activity     []ActivityRow
	Settings     []Section
	Contributors []Contributor
	UpdatedAt    string
}

// BuildView formats in for display relative to now.
func BuildView(in Input, now time.Time) View {
	v := View{
		Title:    in.Title,
		Loading:  in.Loading,
		Settings: in.Settings,
	}
	if v.Title == "" {
		v.Title = DefaultTitle
	}
	if in.Err != nil {
		v.Error = in.Err.Error()
	}
	if !in.UpdatedAt.IsZero() {
		v.UpdatedAt = RelativeTime(in.UpdatedAt, now)
	}

	v.Statuses = make([]StatusRow, 0, len(in.Statuses))
	for _, r := range in.Statuses {
		v.Statuses = append(v.Statuses, StatusRow{
			ID:   strconv.FormatInt(r.ID, 10),
			Code: r.Code,
			Name: r.Name,
		})
	}

	v.Activity = make([]ActivityRow, 0, len(in.Activity))
	for _, e := range in.Activity {
		v.Activity = append(v.Activity, ActivityRow{
			Route:    e.Route,
			FileName: fileLabel(e.FileName),
			Size:     humanize.IBytes(uint64(max(e.Size, 0))),
			Status:   statusLabel(e.Status),
			Accepted: e.Accepted(),
			When:     RelativeTime(e.At, now),
			At:       e.At.UTC().Format(time.RFC3339),
		})
	}

	for _, c := range in.Contributors {
		if c.Role == "" {
			c.Role = "-"
		}
		v.Contributors = append(v.Contributors, c)
	}
	return v
}

// RelativeTime renders t as "3 minutes ago" relative to now.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	if d < time.Second {
		return "just now"
	}
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(1).String() + " ago"
}

func fileLabel(name string) string {
	if name == "" {
		return "(no file)"
	}
	return name
}

func statusLabel(code int) string {
	if code == 0 {
		return "-"
	}
	if text := http.StatusText(code); text != "" {
		return strconv.Itoa(code) + " " + text
	}
	return strconv.Itoa(code)
}
