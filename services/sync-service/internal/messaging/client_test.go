package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	viper.Set("messaging.url", srv.URL)
	t.Cleanup(func() { viper.Set("messaging.url", "") })

	return NewClient()
}

func TestSendSMS(t *testing.T) {
	tenantID := uuid.New()
	var got smsRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/sms", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.SendSMS(context.Background(), tenantID, "Ops", "Server down", "+46701234567")

	require.NoError(t, err)
	assert.Equal(t, tenantID, got.TenantID)
	assert.Equal(t, "Ops", got.Sender)
	assert.Equal(t, "Server down", got.Message)
	assert.Equal(t, "+46701234567", got.MobileNumber)
}

func TestSendSMSRejectedStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	err := client.SendSMS(context.Background(), uuid.New(), "Ops", "hello", "+46701234567")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSendAlert(t *testing.T) {
	var got alertRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/alerts", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	})

	err := client.SendAlert(context.Background(), "Unfetched emails past retention", "2 emails")

	require.NoError(t, err)
	assert.Equal(t, "Unfetched emails past retention", got.Subject)
	assert.Equal(t, "2 emails", got.Body)
}
