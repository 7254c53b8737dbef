package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/transfa/ledger-service/internal/app"
	"github.com/transfa/ledger-service/internal/domain"
	"github.com/transfa/ledger-service/internal/store"
)

func newTestServer(t *testing.T, idempotency *IdempotencyStore) http.Handler {
	t.Helper()
	engine := app.NewEngine(store.NewMemoryStore(), app.NewResolver(0), nil)
	return LedgerRoutes(NewLedgerHandlers(engine), idempotency)
}

func doJSON(t *testing.T, server http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func createAccountViaAPI(t *testing.T, server http.Handler, currency, balance string) *domain.Account {
	t.Helper()
	rec := doJSON(t, server, http.MethodPost, "/accounts", createAccountRequest{
		Name:           "checking",
		Currency:       currency,
		InitialBalance: decimal.RequireFromString(balance),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createAccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Account)
	return resp.Account
}

func TestCreateAccountEndpoint(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doJSON(t, server, http.MethodPost, "/accounts", createAccountRequest{
		Name:           "savings",
		Currency:       "USD",
		InitialBalance: decimal.RequireFromString("100"),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createAccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "USD", resp.Account.Currency)
	assert.True(t, resp.Account.Balance.Equal(decimal.RequireFromString("100")))
	require.NotNil(t, resp.Transaction)
	assert.Equal(t, domain.DirectionIncome, resp.Transaction.Direction)
	assert.Equal(t, domain.StatusCompleted, resp.Transaction.Status)
}

func TestCreateAccountEndpoint_MissingCurrency(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doJSON(t, server, http.MethodPost, "/accounts", createAccountRequest{Name: "savings"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAccountEndpoint_NotFound(t *testing.T) {
	server := newTestServer(t, nil)

	rec := doJSON(t, server, http.MethodGet, "/accounts/7e7f3b6a-7f44-4cb4-9c8f-09d1b3f8f001", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodGet, "/accounts/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOutgoingEndpoint_OverdraftReturnsDeclined(t *testing.T) {
	server := newTestServer(t, nil)
	account := createAccountViaAPI(t, server, "USD", "50")

	rec := doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/accounts/%s/transactions/outgoing", account.ID),
		createTransactionRequest{Amount: decimal.RequireFromString("70")}, nil)

	// Declined is a successful business outcome, not an error status.
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tx domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, domain.StatusDeclined, tx.Status)

	got := doJSON(t, server, http.MethodGet, "/accounts/"+account.ID.String(), nil, nil)
	require.Equal(t, http.StatusOK, got.Code)
	var unchanged domain.Account
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &unchanged))
	assert.True(t, unchanged.Balance.Equal(decimal.RequireFromString("50")))
}

func TestCreateIncomingEndpoint_AppliesBalance(t *testing.T) {
	server := newTestServer(t, nil)
	account := createAccountViaAPI(t, server, "EUR", "0")

	rec := doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/accounts/%s/transactions/incoming", account.ID),
		createTransactionRequest{Amount: decimal.RequireFromString("12.50")}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tx domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tx))
	assert.Equal(t, domain.DirectionIncome, tx.Direction)
	assert.Equal(t, "EUR", tx.Currency)

	got := doJSON(t, server, http.MethodGet, "/accounts/"+account.ID.String(), nil, nil)
	var updated domain.Account
	require.NoError(t, json.Unmarshal(got.Body.Bytes(), &updated))
	assert.True(t, updated.Balance.Equal(decimal.RequireFromString("12.50")))
}

func TestTransferEndpoint_CurrencyMismatch(t *testing.T) {
	server := newTestServer(t, nil)
	sender := createAccountViaAPI(t, server, "USD", "100")
	receiver := createAccountViaAPI(t, server, "EUR", "0")

	rec := doJSON(t, server, http.MethodPost, "/transfers", createTransferRequest{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("10"),
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestTransferEndpoint_MovesBalance(t *testing.T) {
	server := newTestServer(t, nil)
	sender := createAccountViaAPI(t, server, "USD", "100")
	receiver := createAccountViaAPI(t, server, "USD", "0")

	rec := doJSON(t, server, http.MethodPost, "/transfers", createTransferRequest{
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Amount:     decimal.RequireFromString("40"),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp createTransferResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.DirectionOutcome, resp.Outcoming.Direction)
	assert.Equal(t, domain.DirectionIncome, resp.Incoming.Direction)
	assert.Equal(t, resp.Outcoming.Status, resp.Incoming.Status)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	server := newTestServer(t, nil)
	account := createAccountViaAPI(t, server, "USD", "0")

	created := doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/accounts/%s/transactions/incoming", account.ID),
		createTransactionRequest{Amount: decimal.RequireFromString("25"), Status: "pending"}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	var tx domain.Transaction
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &tx))

	rec := doJSON(t, server, http.MethodPut,
		fmt.Sprintf("/transactions/%s/status", tx.ID),
		updateStatusRequest{Status: "completed"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated domain.Transaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, domain.StatusCompleted, updated.Status)
}

func TestUpdateStatusEndpoint_InvalidStatus(t *testing.T) {
	server := newTestServer(t, nil)
	account := createAccountViaAPI(t, server, "USD", "0")

	created := doJSON(t, server, http.MethodPost,
		fmt.Sprintf("/accounts/%s/transactions/incoming", account.ID),
		createTransactionRequest{Amount: decimal.RequireFromString("5")}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	var tx domain.Transaction
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &tx))

	rec := doJSON(t, server, http.MethodPut,
		fmt.Sprintf("/transactions/%s/status", tx.ID),
		updateStatusRequest{Status: "cancelled"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIdempotencyMiddleware_ReplaysCachedResponse(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	server := newTestServer(t, NewIdempotencyStore(client, "ledger:idempotency", 0))
	headers := map[string]string{"Idempotency-Key": "create-acct-42"}
	body := createAccountRequest{
		Name:           "savings",
		Currency:       "USD",
		InitialBalance: decimal.RequireFromString("10"),
	}

	first := doJSON(t, server, http.MethodPost, "/accounts", body, headers)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("X-Idempotency-Hit"))

	second := doJSON(t, server, http.MethodPost, "/accounts", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Hit"))

	// The retry must replay the original response, account ID included.
	assert.Equal(t, first.Body.String(), second.Body.String())

	// A different key creates a fresh account.
	third := doJSON(t, server, http.MethodPost, "/accounts", body, map[string]string{"Idempotency-Key": "create-acct-43"})
	require.Equal(t, http.StatusCreated, third.Code)
	assert.NotEqual(t, first.Body.String(), third.Body.String())
}
