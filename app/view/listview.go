package view

import (
	"bytes"
	"fmt"
	"html"

	"github.com/lysyi3m/lawnmap/app/catalog"
)

// FocusZoom is the minimum zoom used when a list row is clicked.
const FocusZoom = 12

type Row struct {
	ItemID     string   `json:"id"`
	Slug       string   `json:"slug"`
	NameHTML   string   `json:"name_html"`
	Distance   string   `json:"distance,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
	OpenNow    *bool    `json:"open_now,omitempty"`
	LinkOK     *bool    `json:"link_ok,omitempty"`
	Duplicate  bool     `json:"duplicate"`
	Bookable   bool     `json:"bookable"`
	Host       string   `json:"host,omitempty"`
	Categories []string `json:"categories"`
	Link       string   `json:"link,omitempty"`
}

type zoomer interface {
	Zoom() int
}

// ListView renders the visible items as rows and turns row clicks into
// details, layout and focus updates.
type ListView struct {
	categories *catalog.CategoryTable
	bus        *Bus
	details    *DetailsPanel
	layout     *Layout
	mapZoom    zoomer

	header string
	rows   []Row
	items  map[string]catalog.Item
	html   string
}

func NewListView(categories *catalog.CategoryTable, bus *Bus, details *DetailsPanel, layout *Layout, mapZoom zoomer) *ListView {
	return &ListView{
		categories: categories,
		bus:        bus,
		details:    details,
		layout:     layout,
		mapZoom:    mapZoom,
		items:      make(map[string]catalog.Item),
	}
}

// Header is "<n> platser" with suffixes for distance sorting and the
// duplicates filter.
func Header(count int, state catalog.FilterState) string {
	h := fmt.Sprintf("%d platser", count)
	if state.UserPos != nil {
		h += " – sorterat efter avstånd"
	}
	if state.DuplicatesOnly {
		h += " – visar dubletter"
	}
	return h
}

func (l *ListView) Render(matches []catalog.Match, state catalog.FilterState, dupes catalog.DuplicateCounter) {
	query := catalog.NormalizeQuery(state.Query)

	l.header = Header(len(matches), state)
	l.rows = make([]Row, 0, len(matches))
	l.items = make(map[string]catalog.Item, len(matches))

	var buf bytes.Buffer
	buf.WriteString(`<div class="meta">` + html.EscapeString(l.header) + "</div>\n")

	for _, m := range matches {
		item := m.Item
		row := Row{
			ItemID:    item.ID,
			Slug:      catalog.Slugify(item.ID),
			NameHTML:  catalog.Highlight(item.Name, query),
			OpenNow:   item.OpenNow,
			LinkOK:    item.LinkOK,
			Duplicate: item.SiteKey != "" && dupes != nil && dupes.DuplicateCount(item.SiteKey) > 1,
			Bookable:  item.Bookable,
			Host:      catalog.SiteHost(item.SiteKey),
			Link:      item.Link,
		}
		if m.HasDistance {
			d := m.DistanceKm
			row.DistanceKm = &d
			row.Distance = fmt.Sprintf("%.1f km", d)
		}
		for _, c := range item.Categories {
			if state.Active[c] {
				row.Categories = append(row.Categories, c)
			}
		}

		l.rows = append(l.rows, row)
		l.items[item.ID] = item
		l.writeRow(&buf, item, row)
	}

	l.html = buf.String()
}

func (l *ListView) writeRow(buf *bytes.Buffer, item catalog.Item, row Row) {
	buf.WriteString(fmt.Sprintf(`<div class="list-item" data-id="%s">`, html.EscapeString(row.ItemID)))

	buf.WriteString(`<div class="name">`)
	if primary := item.PrimaryCategory(); primary != "" {
		buf.WriteString(l.categories.IconHTML(primary, 14))
	}
	buf.WriteString(fmt.Sprintf(`<a href="places/%s.html">%s</a>`, row.Slug, row.NameHTML))
	if row.Distance != "" {
		buf.WriteString(` <small class="dist">` + row.Distance + `</small>`)
	}
	var booking string
	if row.Bookable {
		booking = bookableBadge
	}
	var dup string
	if row.Duplicate {
		dup = duplicateBadge
	}
	if badges := joinNonEmpty(openBadge(row.OpenNow), linkBadge(row.LinkOK), dup, booking); badges != "" {
		buf.WriteString(" " + badges)
	}
	buf.WriteString("</div>")

	buf.WriteString(`<div class="meta">`)
	badges := make([]string, 0, len(row.Categories))
	for _, c := range row.Categories {
		badges = append(badges, categoryBadge(l.categories, c))
	}
	host := ""
	if row.Host != "" {
		host = "• " + html.EscapeString(row.Host)
	}
	buf.WriteString(joinNonEmpty(append(badges, outboundLink(row.Link, "Länk", ""), host)...))
	buf.WriteString("</div>")

	buf.WriteString("</div>\n")
}

func (l *ListView) Header() string {
	return l.header
}

func (l *ListView) Rows() []Row {
	out := make([]Row, len(l.rows))
	copy(out, l.rows)
	return out
}

func (l *ListView) HTML() string {
	return l.html
}

// Click shows details, switches narrow viewports to the map and asks the
// map to reveal the item, in that order.
func (l *ListView) Click(itemID string, viewportWidth int) error {
	item, ok := l.items[itemID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}

	l.details.Show(item)

	if IsNarrow(viewportWidth) {
		l.layout.ShowMap()
	}

	zoom := FocusZoom
	if l.mapZoom != nil {
		zoom = max(FocusZoom, l.mapZoom.Zoom())
	}

	return l.bus.PublishFocus(FocusEvent{
		ItemID: item.ID,
		Lat:    item.Lat,
		Lng:    item.Lng,
		Zoom:   zoom,
	})
}
