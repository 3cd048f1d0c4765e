package catalog

import "time"

type ProductType string

const (
	ProductTypeDigital  ProductType = "digital"
	ProductTypePhysical ProductType = "physical"
)

type Product struct {
	UID              string // url-friendly slug, unique
	Title            string
	Description      string
	PriceInCents     int64
	SalePriceInCents int64 // 0 means: not on sale
	Currency         string
	Stock            int
	Type             ProductType
	ThumbnailURL     string
	CreatedAt        time.Time
}

// EffectivePriceInCents is the price a buyer actually pays:
// the sale price when present, the list price otherwise
func (p Product) EffectivePriceInCents() int64 {
	if p.SalePriceInCents > 0 {
		return p.SalePriceInCents
	}
	return p.PriceInCents
}

func (p Product) IsPhysical() bool {
	return p.Type == ProductTypePhysical
}
