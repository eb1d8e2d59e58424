package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Collection names a persisted record set
type Collection string

const (
	CollectionProducts   Collection = "products"
	CollectionOrders     Collection = "orders"
	CollectionCategories Collection = "categories"
)

// Collections lists every persisted collection
func Collections() []Collection {
	return []Collection{CollectionProducts, CollectionOrders, CollectionCategories}
}

func ParseCollection(s string) (Collection, error) {
	for _, c := range Collections() {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown collection: %q", s)
}

// Record is the closed set of persisted variants: Product, Order and Category.
type Record interface {
	Collection() Collection
	RecordID() string
	Validate() error
	isRecord()
}

func (Product) isRecord()  {}
func (Order) isRecord()    {}
func (Category) isRecord() {}

// DecodeRecord parses a JSON body into the variant for collection and validates it.
// Products and categories posted without an id are given a fresh one.
func DecodeRecord(collection Collection, body []byte) (Record, error) {
	var rec Record
	var err error

	switch collection {
	case CollectionProducts:
		var p Product
		err = decodeStrict(body, &p)
		if p.ID == "" {
			p.ID = NewProductID()
		}
		rec = p
	case CollectionOrders:
		var o Order
		err = decodeStrict(body, &o)
		rec = o
	case CollectionCategories:
		var c Category
		err = decodeStrict(body, &c)
		if c.ID == "" {
			c.ID = NewCategoryID()
		}
		rec = c
	default:
		return nil, fmt.Errorf("unknown collection: %q", collection)
	}

	if err != nil {
		return nil, ValidationError{Field: "body", Message: err.Error()}
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

func decodeStrict(body []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
