package domain

import "fmt"

// Cart — упорядоченный список позиций корзины.
type Cart []Product

// Find возвращает индекс позиции с указанным товаром или -1.
func (c Cart) Find(productID int64) int {
	for i := range c {
		if c[i].ID == productID {
			return i
		}
	}
	return -1
}

// Clone возвращает глубокую копию корзины. Пустая корзина копируется в
// непустой срез, чтобы сериализация давала [] вместо null.
func (c Cart) Clone() Cart {
	clone := make(Cart, len(c))
	for i := range c {
		clone[i] = c[i].Clone()
	}
	return clone
}

// WithAmount возвращает новую корзину, в которой у товара productID
// количество заменено на amount. Исходная корзина не меняется.
func (c Cart) WithAmount(productID int64, amount int) Cart {
	next := c.Clone()
	if idx := next.Find(productID); idx >= 0 {
		next[idx].Amount = amount
	}
	return next
}

// Append возвращает новую корзину с позицией product в конце.
func (c Cart) Append(product Product) Cart {
	next := make(Cart, 0, len(c)+1)
	next = append(next, c.Clone()...)
	return append(next, product.Clone())
}

// Without возвращает новую корзину без товара productID,
// остальные позиции сохраняют взаимный порядок.
func (c Cart) Without(productID int64) Cart {
	next := make(Cart, 0, len(c))
	for i := range c {
		if c[i].ID == productID {
			continue
		}
		next = append(next, c[i].Clone())
	}
	return next
}

// TotalUnits возвращает суммарное количество единиц товара в корзине.
func (c Cart) TotalUnits() int {
	total := 0
	for i := range c {
		total += c[i].Amount
	}
	return total
}

// Validate проверяет инварианты корзины: уникальность товаров и положительные количества.
func (c Cart) Validate() []error {
	var errs []error

	seen := make(map[int64]struct{}, len(c))
	for _, item := range c {
		if _, dup := seen[item.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: product %d", ErrCartDuplicateProduct, item.ID))
		}
		seen[item.ID] = struct{}{}

		if item.Amount <= 0 {
			errs = append(errs, fmt.Errorf("%w: product %d has amount %d", ErrCartAmountInvalid, item.ID, item.Amount))
		}
	}

	return errs
}
