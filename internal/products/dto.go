package products

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// productForm is the raw input of the create/edit form.
type productForm struct {
	Name        string
	Description string
	Price       string
}

func parseProductForm(values url.Values) productForm {
	return productForm{
		Name:        values.Get("name"),
		Description: values.Get("description"),
		Price:       strings.TrimSpace(values.Get("price")),
	}
}

// toProduct converts the form into a product. An unparsable price becomes NaN
// so validation reports it on the price field.
func (f productForm) toProduct() Product {
	price := math.NaN()
	if v, err := strconv.ParseFloat(f.Price, 64); err == nil {
		price = v
	}
	return Product{Name: f.Name, Description: f.Description, Price: price}
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
