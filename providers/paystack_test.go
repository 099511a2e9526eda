package providers_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "sk_test_paystack"

func sign(body []byte) string {
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestPaystackInitialize_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer "+testSecret, r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(500000), body["amount"])
		assert.Equal(t, "a@x.com", body["email"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"R1"}}`))
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	res, err := gw.Initialize(context.Background(), providers.InitializeRequest{
		Email: "a@x.com", Amount: 500000, Currency: "NGN", CallbackURL: "http://localhost/cb",
	})
	require.NoError(t, err)
	assert.Equal(t, "R1", res.Reference)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)
}

func TestPaystackInitialize_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid amount"}`))
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	_, err := gw.Initialize(context.Background(), providers.InitializeRequest{Email: "a@x.com", Amount: 1})
	assert.ErrorIs(t, err, apperrors.ErrGatewayRejected)
	assert.Contains(t, err.Error(), "Invalid amount")
}

func TestPaystackVerify_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/R1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"reference":"R1","status":"success","amount":500000,"currency":"NGN",
			"paid_at":"2025-03-01T10:00:00Z","customer":{"email":"a@x.com"},
			"metadata":{"school_id":"45"}}}`))
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	v, err := gw.Verify(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, providers.StatusSuccess, v.Status)
	assert.Equal(t, int64(500000), v.Amount)
	assert.Equal(t, "a@x.com", v.CustomerEmail)
	assert.Equal(t, "45", v.Metadata["school_id"])
	require.NotNil(t, v.PaidAt)
}

func TestPaystackVerify_NonTerminalStatusIsPending(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"R1","status":"ongoing","amount":500000,"metadata":""}}`))
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	v, err := gw.Verify(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, providers.StatusPending, v.Status)
	assert.Nil(t, v.Metadata)
}

func TestPaystackVerify_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	_, err := gw.Verify(context.Background(), "R404")
	assert.ErrorIs(t, err, apperrors.ErrReferenceUnknownAtGateway)
}

func TestPaystackVerify_ServerErrorIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	_, err := gw.Verify(context.Background(), "R1")
	assert.ErrorIs(t, err, apperrors.ErrGatewayUnreachable)
}

func TestPaystackVerify_ReferenceMismatchIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"R2","status":"success","amount":500000}}`))
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	_, err := gw.Verify(context.Background(), "R1")
	assert.ErrorIs(t, err, apperrors.ErrGatewayRejected)
}

func TestPaystackVerify_MalformedDataIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"R1","status":"success","amount":"lots"}}`))
	}))
	defer srv.Close()

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 5*time.Second)
	_, err := gw.Verify(context.Background(), "R1")
	assert.ErrorIs(t, err, apperrors.ErrGatewayUnreachable)
	assert.True(t, apperrors.Retryable(err))
}

func TestPaystackVerify_TimeoutIsUnreachable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	gw := providers.NewPaystackGateway(testSecret, srv.URL, 50*time.Millisecond)
	_, err := gw.Verify(context.Background(), "R1")
	assert.ErrorIs(t, err, apperrors.ErrGatewayUnreachable)
}

func TestPaystackValidateSignature(t *testing.T) {
	gw := providers.NewPaystackGateway(testSecret, "http://unused", time.Second)
	body := []byte(`{"event":"charge.success","data":{"reference":"R1"}}`)

	assert.True(t, gw.ValidateSignature(body, sign(body)))
	assert.False(t, gw.ValidateSignature(body, ""))
	assert.False(t, gw.ValidateSignature(body, "not-hex"))

	// Re-serialising changes the bytes, so the original signature must not verify.
	reencoded := []byte(`{"data":{"reference":"R1"},"event":"charge.success"}`)
	assert.False(t, gw.ValidateSignature(reencoded, sign(body)))
}

func TestPaystackParseEvent(t *testing.T) {
	gw := providers.NewPaystackGateway(testSecret, "http://unused", time.Second)

	ev, err := gw.ParseEvent([]byte(`{"event":"charge.success","data":{"reference":"R1","amount":500000,"status":"success","customer":{"email":"a@x.com"},"metadata":{"name":"Ada"}}}`))
	require.NoError(t, err)
	assert.True(t, ev.Actionable)
	assert.Equal(t, "R1", ev.Reference)
	assert.Equal(t, int64(500000), ev.Amount)
	assert.Equal(t, "Ada", ev.Metadata["name"])

	ev, err = gw.ParseEvent([]byte(`{"event":"transfer.success","data":{"reference":"T1"}}`))
	require.NoError(t, err)
	assert.False(t, ev.Actionable)

	_, err = gw.ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
