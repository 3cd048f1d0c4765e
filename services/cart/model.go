package cart

import (
	"time"

	"github.com/MarcGrol/shopcheckout/services/catalog"
)

type CartLine struct {
	ProductUID   string
	Title        string
	PriceInCents int64 // effective price at the time of adding
	Quantity     int
	ThumbnailURL string
	Type         catalog.ProductType
}

type Cart struct {
	UID          string
	CreatedAt    time.Time
	LastModified *time.Time
	Currency     string
	Items        []CartLine
	TotalInCents int64 // derived, recomputed on every mutation
}

// AddLine merges by product uid: adding a product that is already in the
// cart increments its quantity instead of appending a duplicate line.
func (b *Cart) AddLine(line CartLine) {
	if line.Quantity < 1 {
		line.Quantity = 1
	}

	for i, existing := range b.Items {
		if existing.ProductUID == line.ProductUID {
			b.Items[i].Quantity += line.Quantity
			b.recomputeTotal()
			return
		}
	}

	b.Items = append(b.Items, line)
	b.recomputeTotal()
}

// SetQuantity adjusts the quantity of an existing line, clamped to a minimum
// of 1. Unknown product uids are a no-op.
func (b *Cart) SetQuantity(productUID string, quantity int) {
	if quantity < 1 {
		quantity = 1
	}

	for i, existing := range b.Items {
		if existing.ProductUID == productUID {
			b.Items[i].Quantity = quantity
			break
		}
	}
	b.recomputeTotal()
}

// RemoveLine removes the line with the given product uid. Absent uids are a no-op.
func (b *Cart) RemoveLine(productUID string) {
	for i, existing := range b.Items {
		if existing.ProductUID == productUID {
			b.Items = append(b.Items[:i], b.Items[i+1:]...)
			break
		}
	}
	b.recomputeTotal()
}

func (b *Cart) Clear() {
	b.Items = []CartLine{}
	b.TotalInCents = 0
}

func (b *Cart) recomputeTotal() {
	var total int64
	for _, line := range b.Items {
		total += line.PriceInCents * int64(line.Quantity)
	}
	b.TotalInCents = total
}

func (b Cart) IsEmpty() bool {
	return len(b.Items) == 0
}

func (b Cart) HasPhysicalItems() bool {
	for _, line := range b.Items {
		if line.Type == catalog.ProductTypePhysical {
			return true
		}
	}
	return false
}
