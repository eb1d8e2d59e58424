package models

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultProductImage is used when a product is saved without an image
const DefaultProductImage = "https://picsum.photos/400/300"

// Product is a catalog entry. Orders snapshot its name and price.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Unit     string          `json:"unit"`
	Category string          `json:"category"`
	Image    string          `json:"image"`
	Spec     string          `json:"spec"`
}

// Category names a product grouping. Products reference it by name only.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p Product) Collection() Collection { return CollectionProducts }
func (p Product) RecordID() string       { return p.ID }

// Validate checks a product before it is accepted by a store
func (p Product) Validate() error {
	if err := requireText("id", p.ID, 64); err != nil {
		return err
	}
	if err := requireText("name", p.Name, 100); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return ValidationError{Field: "price", Message: "must not be negative"}
	}
	if len(p.Unit) > 20 {
		return ValidationError{Field: "unit", Message: "must not exceed 20 characters"}
	}
	if len(p.Category) > 50 {
		return ValidationError{Field: "category", Message: "must not exceed 50 characters"}
	}
	return nil
}

// Matches reports whether the product passes a category filter and a name/category search
func (p Product) Matches(category, query string) bool {
	if category != "" && p.Category != category {
		return false
	}
	if query == "" {
		return true
	}
	return strings.Contains(p.Name, query) || strings.Contains(p.Category, query)
}

func (c Category) Collection() Collection { return CollectionCategories }
func (c Category) RecordID() string       { return c.ID }

func (c Category) Validate() error {
	if err := requireText("id", c.ID, 64); err != nil {
		return err
	}
	return requireText("name", c.Name, 50)
}

// NewProductID returns a fresh product identifier
func NewProductID() string {
	return "p" + shortToken(12)
}

// NewCategoryID returns a fresh category identifier
func NewCategoryID() string {
	return "c" + shortToken(12)
}

// shortToken returns n upper-case hex characters from a random UUID
func shortToken(n int) string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return token[:n]
}

// DefaultCategories are created when the categories collection is empty
func DefaultCategories() []Category {
	names := []string{"Fruit", "Vegetables", "Eggs & Poultry", "Drinks", "Grain & Oil", "Other"}
	categories := make([]Category, 0, len(names))
	for _, name := range names {
		categories = append(categories, Category{ID: NewCategoryID(), Name: name})
	}
	return categories
}

// DefaultProducts are created when the catalog is empty
func DefaultProducts() []Product {
	return []Product{
		{ID: "p1", Name: "Fuji Apples", Price: decimal.RequireFromString("8.5"), Unit: "jin", Category: "Fruit", Spec: "Premium large", Image: "https://picsum.photos/id/102/400/300"},
		{ID: "p2", Name: "Napa Cabbage", Price: decimal.RequireFromString("1.2"), Unit: "jin", Category: "Vegetables", Spec: "Fresh cut", Image: "https://picsum.photos/id/102/400/301"},
		{ID: "p3", Name: "Free-range Eggs", Price: decimal.RequireFromString("15.0"), Unit: "box", Category: "Eggs & Poultry", Spec: "10 per box", Image: "https://picsum.photos/id/102/400/302"},
		{ID: "p4", Name: "Spring Water", Price: decimal.RequireFromString("2.0"), Unit: "bottle", Category: "Drinks", Spec: "550ml", Image: "https://picsum.photos/id/102/400/303"},
		{ID: "p5", Name: "Peanut Oil", Price: decimal.RequireFromString("128.0"), Unit: "barrel", Category: "Grain & Oil", Spec: "5L per barrel", Image: "https://picsum.photos/id/102/400/304"},
	}
}
