// Package cart keeps each client's cart and turns it into an order on submission.
package cart

// Line is one product entry of a cart
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Cart is an ordered list of product quantities. Quantities are always positive:
// an entry whose quantity would drop to zero is removed.
type Cart struct {
	Lines []Line `json:"lines"`
}

func (c *Cart) index(productID string) int {
	for i, l := range c.Lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

// Add increments productID by one, appending a new entry when absent
func (c *Cart) Add(productID string) {
	if i := c.index(productID); i >= 0 {
		c.Lines[i].Quantity++
		return
	}
	c.Lines = append(c.Lines, Line{ProductID: productID, Quantity: 1})
}

// Remove decrements productID by one and drops the entry at zero
func (c *Cart) Remove(productID string) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.Lines[i].Quantity--
	if c.Lines[i].Quantity <= 0 {
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	}
}

// Quantity returns the quantity held for productID
func (c Cart) Quantity(productID string) int {
	if i := c.index(productID); i >= 0 {
		return c.Lines[i].Quantity
	}
	return 0
}

// Count returns the number of units across entries
func (c Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool { return len(c.Lines) == 0 }

func (c *Cart) Clear() { c.Lines = nil }

// normalize drops entries a stored cart should never contain
func (c *Cart) normalize() {
	kept := c.Lines[:0]
	for _, l := range c.Lines {
		if l.Quantity > 0 && l.ProductID != "" {
			kept = append(kept, l)
		}
	}
	c.Lines = kept
}
