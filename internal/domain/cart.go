package domain

import (
	"github.com/shopspring/decimal"
)

// Product is the catalog view of an item that can be put into a cart.
type Product struct {
	ID       string          `json:"_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Images   []string        `json:"images,omitempty"`
	SellerID string          `json:"seller,omitempty"`
	Stock    int             `json:"stock,omitempty"`
}

// CartLine is one product/quantity/price record of a cart. A cart holds at
// most one line per ProductID and Quantity never drops below 1.
type CartLine struct {
	ProductID  string          `json:"productId"`
	Quantity   int             `json:"quantity"`
	PriceAtAdd decimal.Decimal `json:"price"`
	Name       string          `json:"name,omitempty"`
	Image      string          `json:"image,omitempty"`
	SellerID   string          `json:"seller,omitempty"`
}

// Subtotal returns quantity x price-at-add.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.PriceAtAdd.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// NewCartLine builds a single-unit line from a product.
func NewCartLine(p Product) CartLine {
	line := CartLine{
		ProductID:  p.ID,
		Quantity:   1,
		PriceAtAdd: p.Price,
		Name:       p.Name,
		SellerID:   p.SellerID,
	}
	if len(p.Images) > 0 {
		line.Image = p.Images[0]
	}
	return line
}

// CartTotal sums quantity x price over lines.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// CartCount sums quantities over lines.
func CartCount(lines []CartLine) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

// CloneLines returns a copy that shares no backing array with lines.
func CloneLines(lines []CartLine) []CartLine {
	out := make([]CartLine, len(lines))
	copy(out, lines)
	return out
}

// NormalizeLines folds duplicate product ids into one line (summing
// quantities, keeping the first price) and drops lines with quantity < 1 or
// an empty product id. Backend payloads pass through here before adoption.
func NormalizeLines(lines []CartLine) []CartLine {
	out := make([]CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity < 1 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}
