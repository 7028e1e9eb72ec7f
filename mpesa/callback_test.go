package mpesa

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 250.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

func TestCallback_Metadata(t *testing.T) {
	var cb Callback
	require.NoError(t, json.Unmarshal([]byte(successCallback), &cb))

	stk := cb.Body.STKCallback
	assert.True(t, stk.Succeeded())
	assert.Equal(t, "ws_CO_191220191020363925", stk.CheckoutRequestID)

	meta := stk.Metadata()
	receipt, ok := meta.Get(ItemReceiptNumber)
	assert.True(t, ok)
	assert.Equal(t, "NLJ7RT61SV", receipt)

	phone, _ := meta.Get(ItemPhoneNumber)
	assert.Equal(t, "254712345678", phone)

	date, _ := meta.Get(ItemTransactionDate)
	assert.Equal(t, "20191219102115", date)

	amount, _ := meta.Get(ItemAmount)
	assert.Equal(t, "250.00", amount)

	_, ok = meta.Get(ItemBalance)
	assert.False(t, ok)
}

func TestCallback_FailureWithoutMetadata(t *testing.T) {
	body := `{"Body":{"stkCallback":{"MerchantRequestID":"m","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`
	var cb Callback
	require.NoError(t, json.Unmarshal([]byte(body), &cb))

	stk := cb.Body.STKCallback
	assert.False(t, stk.Succeeded())
	assert.Empty(t, stk.Metadata())
	_, ok := stk.Metadata().Get(ItemReceiptNumber)
	assert.False(t, ok)
}
