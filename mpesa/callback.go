package mpesa

import (
	"bytes"
	"encoding/json"
)

const ResultCodeSuccess = 0

// Metadata item names sent on a successful STK callback.
const (
	ItemAmount          = "Amount"
	ItemReceiptNumber   = "MpesaReceiptNumber"
	ItemTransactionDate = "TransactionDate"
	ItemPhoneNumber     = "PhoneNumber"
	ItemBalance         = "Balance"
)

type Callback struct {
	Body CallbackBody `json:"Body"`
}

type CallbackBody struct {
	STKCallback STKCallback `json:"stkCallback"`
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []MetadataItem `json:"Item"`
}

// MetadataItem values arrive as JSON strings or numbers depending on the field.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

func (c STKCallback) Succeeded() bool {
	return c.ResultCode == ResultCodeSuccess
}

// Metadata flattens the name/value list. Items without a value are left out.
func (c STKCallback) Metadata() Metadata {
	m := Metadata{}
	if c.CallbackMetadata == nil {
		return m
	}
	for _, item := range c.CallbackMetadata.Item {
		if v, ok := rawString(item.Value); ok {
			m[item.Name] = v
		}
	}
	return m
}

type Metadata map[string]string

func (m Metadata) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

func rawString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	}
	// Numbers are kept as their literal text so long values like phone numbers and
	// transaction dates don't go through float64.
	return string(raw), true
}

// Ack is the fixed envelope Daraja expects back from the callback URL.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

var Accepted = Ack{ResultCode: 0, ResultDesc: "Accepted"}
