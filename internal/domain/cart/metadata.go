package cart

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Metadata keys stored on the payment session. Carts whose items do not fit
// one value are split over MetadataItems + "_0", "_1", ...
const (
	MetadataUserID = "userId"
	MetadataItems  = "items"
)

// Stripe limits: 500 characters per value, 50 keys per object.
const (
	maxMetadataValueLen = 500
	maxMetadataKeys     = 50
)

var (
	ErrMalformedMetadata = errors.New("malformed settlement metadata")
	ErrMetadataTooLarge  = fmt.Errorf("%w: cart does not fit session metadata", ErrInvalidCart)
)

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	maxInt32 = decimal.NewFromInt(math.MaxInt32)
)

// Metadata is what a payment session carries so the order can be rebuilt
// without consulting the client again.
type Metadata struct {
	UserID string
	Items  []ValidatedLineItem
}

type wireItem struct {
	ID           json.RawMessage `json:"id"`
	Name         *string         `json:"name,omitempty"`
	Price        json.RawMessage `json:"price"`
	Quantity     json.RawMessage `json:"quantity"`
	VariantID    json.RawMessage `json:"variantId,omitempty"`
	VariantValue *string         `json:"variantValue,omitempty"`
}

// EncodeMetadata serialises the buyer and validated items into session metadata.
func EncodeMetadata(userID string, items []ValidatedLineItem) (map[string]string, error) {
	wire := make([]wireItem, len(items))
	for i, item := range items {
		name := item.ProductName
		w := wireItem{
			ID:           json.RawMessage(strconv.FormatInt(item.ProductID, 10)),
			Name:         &name,
			Price:        json.RawMessage(item.UnitPrice.String()),
			Quantity:     json.RawMessage(strconv.Itoa(item.Quantity)),
			VariantValue: item.VariantValue,
		}
		if item.VariantID != nil {
			raw, err := json.Marshal(*item.VariantID)
			if err != nil {
				return nil, err
			}
			w.VariantID = raw
		}
		wire[i] = w
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode items metadata: %w", err)
	}

	md := map[string]string{MetadataUserID: userID}
	if len(data) <= maxMetadataValueLen {
		md[MetadataItems] = string(data)
		return md, nil
	}

	chunks := splitValue(string(data), maxMetadataValueLen)
	if len(chunks) > maxMetadataKeys-1 {
		return nil, fmt.Errorf("%w: %d bytes of items", ErrMetadataTooLarge, len(data))
	}
	for i, chunk := range chunks {
		md[itemsChunkKey(i)] = chunk
	}
	return md, nil
}

func itemsChunkKey(i int) string {
	return MetadataItems + "_" + strconv.Itoa(i)
}

// splitValue cuts s into pieces of at most limit bytes without splitting a
// UTF-8 sequence.
func splitValue(s string, limit int) []string {
	var chunks []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	return append(chunks, s)
}

// itemsValue returns the serialised items, joining chunked keys in order.
func itemsValue(md map[string]string) (string, bool) {
	if raw, ok := md[MetadataItems]; ok {
		return raw, true
	}
	var b strings.Builder
	for i := 0; ; i++ {
		chunk, ok := md[itemsChunkKey(i)]
		if !ok {
			return b.String(), i > 0
		}
		b.WriteString(chunk)
	}
}

// ParseMetadata validates session metadata strictly: a non-empty user id and
// at least one well-typed item. Any failure wraps ErrMalformedMetadata.
func ParseMetadata(md map[string]string) (Metadata, error) {
	userID := md[MetadataUserID]
	if userID == "" {
		return Metadata{}, fmt.Errorf("%w: missing %s", ErrMalformedMetadata, MetadataUserID)
	}
	raw, ok := itemsValue(md)
	if !ok || raw == "" {
		return Metadata{}, fmt.Errorf("%w: missing %s", ErrMalformedMetadata, MetadataItems)
	}

	var wire []wireItem
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Metadata{}, fmt.Errorf("%w: %v", ErrMalformedMetadata, err)
	}
	if len(wire) == 0 {
		return Metadata{}, fmt.Errorf("%w: no items", ErrMalformedMetadata)
	}

	items := make([]ValidatedLineItem, len(wire))
	for i, w := range wire {
		item, err := w.validated()
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: item %d: %v", ErrMalformedMetadata, i, err)
		}
		items[i] = item
	}

	return Metadata{UserID: userID, Items: items}, nil
}

func (w wireItem) validated() (ValidatedLineItem, error) {
	if w.Name == nil {
		return ValidatedLineItem{}, errors.New("name is required")
	}
	id, err := coerceInt(w.ID, "id", maxInt64)
	if err != nil {
		return ValidatedLineItem{}, err
	}
	price, err := coerceDecimal(w.Price, "price")
	if err != nil {
		return ValidatedLineItem{}, err
	}
	if price.IsNegative() {
		return ValidatedLineItem{}, errors.New("price must be non-negative")
	}
	qty, err := coerceInt(w.Quantity, "quantity", maxInt32)
	if err != nil {
		return ValidatedLineItem{}, err
	}
	if qty < 1 {
		return ValidatedLineItem{}, ErrInvalidQuantity
	}
	variantID, err := coerceVariantID(w.VariantID)
	if err != nil {
		return ValidatedLineItem{}, err
	}

	return ValidatedLineItem{
		ProductID:    id,
		ProductName:  *w.Name,
		Quantity:     int(qty),
		UnitPrice:    price,
		VariantID:    variantID,
		VariantValue: w.VariantValue,
	}, nil
}

// coerceDecimal accepts a JSON number or a string holding one.
func coerceDecimal(raw json.RawMessage, field string) (decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, fmt.Errorf("%s is required", field)
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return decimal.Decimal{}, fmt.Errorf("%s: %w", field, err)
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be a number", field)
	}
	return d, nil
}

// coerceInt is coerceDecimal restricted to integers in [-limit-1, limit].
// IntPart wraps on overflow, so the range is checked first.
func coerceInt(raw json.RawMessage, field string, limit decimal.Decimal) (int64, error) {
	d, err := coerceDecimal(raw, field)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%s must be an integer", field)
	}
	if d.GreaterThan(limit) || d.LessThan(limit.Neg().Sub(decimal.NewFromInt(1))) {
		return 0, fmt.Errorf("%w: %s is out of range", ErrInvalidCart, field)
	}
	return d.IntPart(), nil
}

// coerceVariantID accepts a string or a number. Absent means no variant.
func coerceVariantID(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("variantId: %w", err)
		}
		if s == "" {
			return nil, nil
		}
		return &s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("variantId: %w", err)
		}
		s := n.String()
		return &s, nil
	default:
		return nil, errors.New("variantId must be a string or a number")
	}
}
