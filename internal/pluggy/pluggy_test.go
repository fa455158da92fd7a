package pluggy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/openbanking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePluggy serves two pages of transactions and can reject the first API key
// on page 2.
type fakePluggy struct {
	mu             sync.Mutex
	authCalls      int
	pageRequests   map[string]int
	rejectFirstKey bool
	rejectAuth     bool
}

func (f *fakePluggy) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.authCalls++
		n := f.authCalls
		f.mu.Unlock()
		if f.rejectAuth || body["clientId"] != "id" || body["clientSecret"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprintf(w, `{"apiKey":"key-%d","expiresIn":7200}`, n)
	})
	mux.HandleFunc("/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "item-1", r.URL.Query().Get("itemId"))
		fmt.Fprint(w, `{"results":[{"id":"acc-1","name":"Conta Corrente","type":"BANK","number":"0001","currencyCode":"BRL","balance":1500.25}],"page":1,"totalPages":1}`)
	})
	mux.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "item-1", q.Get("item_id"))
		assert.Equal(t, "acc-1", q.Get("account_id"))
		assert.Equal(t, "2024-01-01", q.Get("from"))
		assert.Equal(t, "2024-01-31", q.Get("to"))
		assert.Equal(t, "2", q.Get("limit"))

		page := q.Get("page")
		f.mu.Lock()
		f.pageRequests[page]++
		f.mu.Unlock()

		if page == "2" && f.rejectFirstKey && r.Header.Get("X-API-KEY") == "key-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch page {
		case "", "1":
			fmt.Fprint(w, `{"results":[
				{"id":"tx-1","date":"2024-01-05T00:00:00.000Z","description":"PIX  recebido","amount":150.5,"type":"CREDIT","currencyCode":"BRL","category":"Transfer"},
				{"id":"tx-2","date":"2024-01-06","description":"Conta de luz","amount":-80,"type":"DEBIT","balance":1000}
			],"page":1,"totalPages":2}`)
		case "2":
			fmt.Fprint(w, `{"results":[
				{"id":"tx-3","date":"2024-01-07","descriptionRaw":"Tarifa","amount":"-5.90","type":"unknown"},
				{"id":"tx-4","date":"2024-01-08","description":"sem valor"}
			],"page":2,"totalPages":2}`)
		default:
			t.Errorf("unexpected page %q", page)
		}
	})
	return mux
}

func newFake() *fakePluggy {
	return &fakePluggy{pageRequests: make(map[string]int)}
}

func newAdapter(t *testing.T, baseURL string, logger logging.Logger) *Adapter {
	t.Helper()
	a, err := New(Config{BaseURL: baseURL, ClientID: "id", ClientSecret: "secret", PageSize: 2},
		openbanking.NewCredentialCache(time.Hour), openbanking.ClientOptions{Logger: logger})
	require.NoError(t, err)
	return a
}

func testWindow(t *testing.T) openbanking.DateWindow {
	w, err := openbanking.NewDateWindow("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	return w
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost", ClientSecret: "s"}, nil, openbanking.ClientOptions{})
	var cfgErr *openbanking.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "client_id", cfgErr.Field)

	_, err = New(Config{BaseURL: "http://localhost", ClientID: "i"}, nil, openbanking.ClientOptions{})
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "client_secret", cfgErr.Field)
}

func TestListAccounts(t *testing.T) {
	fake := newFake()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	accounts, err := newAdapter(t, srv.URL, logging.NewMockLogger()).ListAccounts(context.Background(), "item-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)
	assert.Equal(t, "item-1", accounts[0].ItemID)
	assert.Equal(t, "BRL", accounts[0].Currency)
	assert.Equal(t, "1500.25", accounts[0].Balance.String())
}

func TestListAccountsRejectsBadItemID(t *testing.T) {
	a := newAdapter(t, "http://127.0.0.1:1", logging.NewMockLogger())
	_, err := a.ListAccounts(context.Background(), "../etc")
	var cfgErr *openbanking.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestFetchTransactionsMapsAndPaginates(t *testing.T) {
	fake := newFake()
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	logger := logging.NewMockLogger()
	txs, err := newAdapter(t, srv.URL, logger).FetchTransactions(context.Background(), "item-1", "acc-1", testWindow(t))
	require.NoError(t, err)
	require.Len(t, txs, 3)

	assert.Equal(t, "tx-1", txs[0].ID)
	assert.Equal(t, "acc-1", txs[0].AccountID)
	assert.Equal(t, "item-1", txs[0].ItemID)
	assert.Equal(t, "PIX recebido", txs[0].Description)
	assert.Equal(t, "150.5", txs[0].Amount.String())
	assert.Equal(t, models.DirectionReceivable, txs[0].Direction)
	assert.Equal(t, "Transfer", txs[0].Category)
	assert.Nil(t, txs[0].Balance)
	assert.Equal(t, "tx-1", txs[0].Metadata["id"])

	assert.Equal(t, models.DirectionPayable, txs[1].Direction)
	require.NotNil(t, txs[1].Balance)
	assert.Equal(t, "1000", txs[1].Balance.String())

	assert.Equal(t, "Tarifa", txs[2].Description)
	assert.Equal(t, models.DirectionPayable, txs[2].Direction)

	assert.True(t, logger.HasEntry("WARN", "Skipping transaction without amount"))
	assert.Equal(t, 1, fake.authCalls)
}

func TestFetchTransactionsRenewsOnceMidPagination(t *testing.T) {
	fake := newFake()
	fake.rejectFirstKey = true
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	txs, err := newAdapter(t, srv.URL, logging.NewMockLogger()).FetchTransactions(context.Background(), "item-1", "acc-1", testWindow(t))
	require.NoError(t, err)

	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	assert.Equal(t, []string{"tx-1", "tx-2", "tx-3"}, ids)
	assert.Equal(t, 2, fake.authCalls)
	assert.Equal(t, 1, fake.pageRequests[""])
	assert.Equal(t, 2, fake.pageRequests["2"])
}

func TestAuthRejectionIsAuthError(t *testing.T) {
	fake := newFake()
	fake.rejectAuth = true
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := newAdapter(t, srv.URL, logging.NewMockLogger()).ListAccounts(context.Background(), "item-1")
	var authErr *openbanking.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
}
