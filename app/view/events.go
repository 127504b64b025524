package view

import (
	"errors"

	"github.com/lysyi3m/lawnmap/app/catalog"
)

// SelectEvent is published when a marker or list row is activated.
type SelectEvent struct {
	Item catalog.Item
	Lat  float64
	Lng  float64
}

// FocusEvent asks the map to reveal an item.
type FocusEvent struct {
	ItemID string
	Lat    float64
	Lng    float64
	Zoom   int
}

// Bus delivers events synchronously in subscription order.
type Bus struct {
	selectHandlers []func(SelectEvent)
	focusHandlers  []func(FocusEvent) error
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) OnSelect(h func(SelectEvent)) {
	b.selectHandlers = append(b.selectHandlers, h)
}

func (b *Bus) OnFocus(h func(FocusEvent) error) {
	b.focusHandlers = append(b.focusHandlers, h)
}

func (b *Bus) PublishSelect(e SelectEvent) {
	for _, h := range b.selectHandlers {
		h(e)
	}
}

func (b *Bus) PublishFocus(e FocusEvent) error {
	var errs []error
	for _, h := range b.focusHandlers {
		if err := h(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
