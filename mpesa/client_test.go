package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(Config{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://shop.example.com/mpesa-callback",
		BaseURL:        server.URL,
		Timeout:        5 * time.Second,
	})
	client.now = func() time.Time { return time.Date(2025, 10, 18, 9, 30, 0, 0, time.UTC) }
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestClient_PasswordAndTimestamp(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	ts := client.Timestamp()
	assert.Equal(t, "20251018123000", ts)

	decoded, err := base64.StdEncoding.DecodeString(client.Password(ts))
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20251018123000", string(decoded))
}

func TestClient_AccessTokenIsCached(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		writeJSON(w, http.StatusOK, `{"access_token":"tok-1","expires_in":"3599"}`)
	})

	for i := 0; i < 3; i++ {
		token, err := client.AccessToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "tok-1", token)
	}
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestClient_AccessTokenFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"errorMessage":"Invalid credentials"}`)
	})

	_, err := client.AccessToken(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_STKPush(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/oauth/v1/generate":
				writeJSON(w, http.StatusOK, `{"access_token":"tok","expires_in":"3599"}`)
			case "/mpesa/stkpush/v1/processrequest":
				assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
				var body stkPushBody
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "174379", body.BusinessShortCode)
				assert.Equal(t, transactionType, body.TransactionType)
				assert.EqualValues(t, 250, body.Amount)
				assert.Equal(t, "254712345678", body.PartyA)
				assert.Equal(t, "254712345678", body.PhoneNumber)
				assert.Equal(t, "174379", body.PartyB)
				assert.Equal(t, "ORD-20251018-0001", body.AccountReference)
				assert.Equal(t, "https://shop.example.com/mpesa-callback", body.CallBackURL)
				assert.Equal(t, "20251018123000", body.Timestamp)
				writeJSON(w, http.StatusOK, `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`)
			default:
				t.Errorf("unexpected path %s", r.URL.Path)
				w.WriteHeader(http.StatusNotFound)
			}
		})

		ack, err := client.STKPush(context.Background(), STKPushRequest{
			PhoneNumber:      "254712345678",
			Amount:           250,
			AccountReference: "ORD-20251018-0001",
			TransactionDesc:  "Order payment",
		})
		require.NoError(t, err)
		assert.Equal(t, "ws_CO_1", ack.CheckoutRequestID)
		assert.Equal(t, "m-1", ack.MerchantRequestID)
		assert.JSONEq(t, `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`, string(ack.Raw))
	})

	t.Run("non zero response code", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/oauth/v1/generate" {
				writeJSON(w, http.StatusOK, `{"access_token":"tok","expires_in":"3599"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"ResponseCode":"1","ResponseDescription":"Rejected"}`)
		})

		_, err := client.STKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 1})
		var providerErr *ProviderError
		require.ErrorAs(t, err, &providerErr)
		assert.Equal(t, "1", providerErr.Code)
		assert.Equal(t, "Rejected", providerErr.Message)
	})

	t.Run("http error body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/oauth/v1/generate" {
				writeJSON(w, http.StatusOK, `{"access_token":"tok","expires_in":"3599"}`)
				return
			}
			writeJSON(w, http.StatusBadRequest, `{"requestId":"r-1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`)
		})

		_, err := client.STKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 1})
		var providerErr *ProviderError
		require.ErrorAs(t, err, &providerErr)
		assert.Equal(t, http.StatusBadRequest, providerErr.StatusCode)
		assert.Equal(t, "Bad Request - Invalid PhoneNumber", providerErr.Message)
	})

	t.Run("malformed body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/oauth/v1/generate" {
				writeJSON(w, http.StatusOK, `{"access_token":"tok","expires_in":"3599"}`)
				return
			}
			writeJSON(w, http.StatusOK, `not json`)
		})

		_, err := client.STKPush(context.Background(), STKPushRequest{PhoneNumber: "254712345678", Amount: 1})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid response")
	})
}
