package belvo

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

type fakeBelvo struct {
	mu            sync.Mutex
	logins        int
	refreshes     int
	pageRequests  map[string]int
	rejectFirst   bool
	rejectRefresh bool
	srvURL        string
}

func (f *fakeBelvo) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "sid" || pass != "spw" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		f.logins++
		n := f.logins
		f.mu.Unlock()
		fmt.Fprintf(w, `{"access":"access-%d","refresh":"refresh-%d","expires_in":600}`, n, n)
	})
	mux.HandleFunc("/api/token/refresh/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.refreshes++
		f.mu.Unlock()
		if f.rejectRefresh || body["refresh"] != "refresh-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"access":"access-refreshed"}`)
	})
	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "link-1", r.URL.Query().Get("link"))
		fmt.Fprint(w, `{"count":1,"next":null,"results":[{"id":"acc-1","name":"Cuenta","category":"CHECKING_ACCOUNT","currency":"MXN","balance":{"current":320.5,"available":300}}]}`)
	})
	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "link-1", q.Get("link"))
		assert.Equal(t, "acc-1", q.Get("account"))
		assert.Equal(t, "2024-01-01", q.Get("date_from"))
		assert.Equal(t, "2024-01-31", q.Get("date_to"))
		assert.Equal(t, "1000", q.Get("page_size"))

		page := q.Get("page")
		f.mu.Lock()
		f.pageRequests[page]++
		f.mu.Unlock()

		if page == "2" && f.rejectFirst && r.Header.Get("Authorization") == "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch page {
		case "":
			next := f.srvURL + "/api/transactions/?" + q.Encode() + "&page=2"
			fmt.Fprintf(w, `{"count":3,"next":%q,"results":[
				{"id":"b-1","value_date":"2024-01-03","description":"Nomina","amount":1200,"type":"INFLOW","currency":"MXN","account":{"id":"acc-1"}},
				{"id":"b-2","value_date":"2024-01-04","description":"Renta","amount":800,"type":"OUTFLOW","balance":400}
			]}`, next)
		case "2":
			fmt.Fprint(w, `{"count":3,"next":null,"results":[
				{"id":"b-3","accounting_date":"2024-01-05","reference":"Fee","amount":"-3.50"}
			]}`)
		default:
			t.Errorf("unexpected page %q", page)
		}
	})
	return mux
}

func startFake(t *testing.T) (*fakeBelvo, *httptest.Server) {
	fake := &fakeBelvo{pageRequests: make(map[string]int)}
	srv := httptest.NewServer(fake.handler(t))
	fake.srvURL = srv.URL
	t.Cleanup(srv.Close)
	return fake, srv
}

func newAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := New(Config{BaseURL: baseURL, SecretID: "sid", SecretPassword: "spw"},
		openbanking.NewCredentialCache(time.Hour), openbanking.ClientOptions{Logger: logging.NewMockLogger()})
	require.NoError(t, err)
	return a
}

func window(t *testing.T) openbanking.DateWindow {
	w, err := openbanking.NewDateWindow("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	return w
}

func txIDs(txs []models.ProviderTransaction) []string {
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.ID)
	}
	return ids
}

func TestNewRequiresSecrets(t *testing.T) {
	_, err := New(Config{BaseURL: "http://localhost"}, nil, openbanking.ClientOptions{})
	var cfgErr *openbanking.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, ProviderName, cfgErr.Provider)
	assert.Equal(t, "secret_id", cfgErr.Field)
}

func TestListAccounts(t *testing.T) {
	_, srv := startFake(t)

	accounts, err := newAdapter(t, srv.URL).ListAccounts(context.Background(), "link-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "acc-1", accounts[0].ID)
	assert.Equal(t, "CHECKING_ACCOUNT", accounts[0].Type)
	assert.Equal(t, "320.5", accounts[0].Balance.String())
}

func TestFetchTransactionsMapsDirections(t *testing.T) {
	fake, srv := startFake(t)

	txs, err := newAdapter(t, srv.URL).FetchTransactions(context.Background(), "link-1", "acc-1", window(t))
	require.NoError(t, err)
	require.Equal(t, []string{"b-1", "b-2", "b-3"}, txIDs(txs))

	assert.Equal(t, models.DirectionReceivable, txs[0].Direction)
	assert.Equal(t, "1200", txs[0].Amount.String())
	assert.Equal(t, "2024-01-03", txs[0].Date)

	assert.Equal(t, models.DirectionPayable, txs[1].Direction)
	assert.Equal(t, "-800", txs[1].Amount.String())
	require.NotNil(t, txs[1].Balance)

	assert.Equal(t, "Fee", txs[2].Description)
	assert.Equal(t, "2024-01-05", txs[2].Date)
	assert.Equal(t, models.DirectionPayable, txs[2].Direction)
	assert.Equal(t, "acc-1", txs[2].AccountID)

	assert.Equal(t, 1, fake.logins)
	assert.Equal(t, 0, fake.refreshes)
}

func TestFetchTransactionsRefreshesOnceMidPagination(t *testing.T) {
	fake, srv := startFake(t)
	fake.rejectFirst = true

	txs, err := newAdapter(t, srv.URL).FetchTransactions(context.Background(), "link-1", "acc-1", window(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1", "b-2", "b-3"}, txIDs(txs))
	assert.Equal(t, 1, fake.logins)
	assert.Equal(t, 1, fake.refreshes)
	assert.Equal(t, 1, fake.pageRequests[""])
	assert.Equal(t, 2, fake.pageRequests["2"])
}

func TestRejectedRefreshFallsBackToLogin(t *testing.T) {
	fake, srv := startFake(t)
	fake.rejectFirst = true
	fake.rejectRefresh = true

	txs, err := newAdapter(t, srv.URL).FetchTransactions(context.Background(), "link-1", "acc-1", window(t))
	require.NoError(t, err)
	assert.Len(t, txs, 3)
	assert.Equal(t, 2, fake.logins)
	assert.Equal(t, 1, fake.refreshes)
}

func TestBadSecretsIsAuthError(t *testing.T) {
	_, srv := startFake(t)
	a, err := New(Config{BaseURL: srv.URL, SecretID: "sid", SecretPassword: "wrong"}, nil, openbanking.ClientOptions{Logger: logging.NewMockLogger()})
	require.NoError(t, err)

	_, err = a.ListAccounts(context.Background(), "link-1")
	var authErr *openbanking.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
}
