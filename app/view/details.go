package view

import (
	"bytes"
	"fmt"
	"html"

	"github.com/lysyi3m/lawnmap/app/catalog"
)

const detailsEmptyText = "Välj en plats i listan eller på kartan."

type DetailsState struct {
	ItemID string `json:"id,omitempty"`
	HTML   string `json:"html"`
}

// DetailsPanel shows the selected item.
type DetailsPanel struct {
	categories *catalog.CategoryTable
	current    *catalog.Item
}

func NewDetailsPanel(categories *catalog.CategoryTable, bus *Bus) *DetailsPanel {
	d := &DetailsPanel{categories: categories}
	bus.OnSelect(func(e SelectEvent) {
		d.Show(e.Item)
	})
	return d
}

func (d *DetailsPanel) Show(item catalog.Item) {
	d.current = &item
}

func (d *DetailsPanel) Clear() {
	d.current = nil
}

func (d *DetailsPanel) Current() (catalog.Item, bool) {
	if d.current == nil {
		return catalog.Item{}, false
	}
	return *d.current, true
}

func (d *DetailsPanel) HTML() string {
	if d.current == nil {
		return `<div class="empty">` + html.EscapeString(detailsEmptyText) + `</div>`
	}
	item := d.current

	var buf bytes.Buffer
	buf.WriteString(`<div class="title">`)
	if primary := item.PrimaryCategory(); primary != "" {
		buf.WriteString(d.categories.IconHTML(primary, 16))
	}
	buf.WriteString(html.EscapeString(item.Name))
	buf.WriteString("</div>")

	row := joinNonEmpty(categoryLabels(d.categories, item.Categories), openBadge(item.OpenNow), linkBadge(item.LinkOK))
	buf.WriteString(`<div class="row">` + row + "</div>")
	if item.Address != "" {
		buf.WriteString(`<div class="row">` + html.EscapeString(item.Address) + "</div>")
	}
	buf.WriteString(fmt.Sprintf(`<div class="row">Koordinater: %.5f, %.5f</div>`, item.Lat, item.Lng))

	buf.WriteString(`<div class="actions">`)
	buf.WriteString(outboundLink(item.Link, "Besök webbplats", "btn"))
	buf.WriteString("</div>")

	return buf.String()
}

func (d *DetailsPanel) State() DetailsState {
	s := DetailsState{HTML: d.HTML()}
	if d.current != nil {
		s.ItemID = d.current.ID
	}
	return s
}
