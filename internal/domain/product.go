package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	fieldID     = "id"
	fieldAmount = "amount"
)

// Product — позиция корзины: товар каталога и запрошенное количество.
//
// Все поля товара, кроме id и amount (название, цена, изображение и т.д.),
// хранятся как есть в Attributes и без изменений попадают в хранилище.
type Product struct {
	ID     int64
	Amount int
	// Attributes — непрозрачные поля карточки товара из inventory-сервиса.
	Attributes map[string]json.RawMessage
}

// Clone возвращает глубокую копию позиции.
func (p Product) Clone() Product {
	clone := Product{ID: p.ID, Amount: p.Amount}
	if p.Attributes != nil {
		clone.Attributes = make(map[string]json.RawMessage, len(p.Attributes))
		for k, v := range p.Attributes {
			clone.Attributes[k] = append(json.RawMessage(nil), v...)
		}
	}
	return clone
}

// Attribute возвращает сырое значение непрозрачного поля товара.
func (p Product) Attribute(name string) (json.RawMessage, bool) {
	v, ok := p.Attributes[name]
	return v, ok
}

// MarshalJSON сериализует позицию плоским объектом: id, amount и все атрибуты рядом.
func (p Product) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(p.Attributes)+2)
	for k, v := range p.Attributes {
		fields[k] = v
	}

	id, err := json.Marshal(p.ID)
	if err != nil {
		return nil, err
	}
	amount, err := json.Marshal(p.Amount)
	if err != nil {
		return nil, err
	}
	fields[fieldID] = id
	fields[fieldAmount] = amount

	return json.Marshal(fields)
}

// UnmarshalJSON разбирает плоский объект товара. Поле amount необязательно:
// карточка из каталога его обычно не содержит.
func (p *Product) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("product must be a JSON object")
	}

	var out Product
	rawID, ok := fields[fieldID]
	if !ok {
		return fmt.Errorf("product %s is required", fieldID)
	}
	if err := json.Unmarshal(rawID, &out.ID); err != nil {
		return fmt.Errorf("decode product %s: %w", fieldID, err)
	}
	if rawAmount, ok := fields[fieldAmount]; ok && !isJSONNull(rawAmount) {
		if err := json.Unmarshal(rawAmount, &out.Amount); err != nil {
			return fmt.Errorf("decode product %s: %w", fieldAmount, err)
		}
	}

	delete(fields, fieldID)
	delete(fields, fieldAmount)
	if len(fields) > 0 {
		out.Attributes = make(map[string]json.RawMessage, len(fields))
		for k, v := range fields {
			// Компактная форма делает повторную сериализацию побайтно стабильной.
			var buf bytes.Buffer
			if err := json.Compact(&buf, v); err != nil {
				return fmt.Errorf("compact product attribute %q: %w", k, err)
			}
			out.Attributes[k] = buf.Bytes()
		}
	}

	*p = out
	return nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

// Stock — снимок остатков товара на складе на момент запроса.
type Stock struct {
	ID     int64 `json:"id"`
	Amount int   `json:"amount"`
}
