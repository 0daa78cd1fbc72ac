package esewa

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/domain/ports"
)

// ErrMissingReference is returned when a callback carries no transaction reference at all
var ErrMissingReference = errors.New("esewa: callback has no transaction reference")

// ParseCallback extracts callback data from the success or failure redirect query.
// The v2 gateway sends a base64 JSON "data" parameter; older redirects send oid/refId/amt.
// A malformed data parameter falls back to the plain parameters.
func ParseCallback(query url.Values) (*ports.CallbackData, error) {
	if data := query.Get("data"); data != "" {
		cb, err := DecodeDataParam(data)
		if err == nil && cb.TransactionRef != "" {
			return cb, nil
		}
	}

	cb := &ports.CallbackData{
		TransactionRef: firstNonEmpty(query.Get("transaction_uuid"), query.Get("oid"), query.Get("pid")),
		GatewayRefID:   firstNonEmpty(query.Get("refId"), query.Get("ref_id"), query.Get("transaction_code")),
		Status:         query.Get("status"),
		TotalAmount:    firstNonEmpty(query.Get("total_amount"), query.Get("amt")),
		ProductCode:    firstNonEmpty(query.Get("product_code"), query.Get("scd")),
	}
	if cb.TransactionRef == "" {
		return nil, ErrMissingReference
	}
	return cb, nil
}

// DecodeDataParam decodes the v2 "data" parameter. Padding is restored when the browser or
// an intermediate proxy stripped it.
func DecodeDataParam(data string) (*ports.CallbackData, error) {
	data = strings.TrimSpace(data)
	if rem := len(data) % 4; rem != 0 {
		data += strings.Repeat("=", 4-rem)
	}

	decoded, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("decode data param: %w", err)
		}
	}

	dec := json.NewDecoder(bytes.NewReader(decoded))
	dec.UseNumber()
	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("parse data param: %w", err)
	}

	fields := make(map[string]string, len(payload))
	for k, v := range payload {
		switch val := v.(type) {
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case bool:
			fields[k] = fmt.Sprintf("%t", val)
		case nil:
			fields[k] = ""
		default:
			fields[k] = fmt.Sprint(val)
		}
	}

	return &ports.CallbackData{
		TransactionRef:   fields["transaction_uuid"],
		GatewayRefID:     fields["transaction_code"],
		Status:           fields["status"],
		TotalAmount:      fields["total_amount"],
		ProductCode:      fields["product_code"],
		SignedFieldNames: fields["signed_field_names"],
		Signature:        fields["signature"],
		Fields:           fields,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
