// Package pluggy implements the Pluggy open-banking adapter.
package pluggy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"erpfin/bank-sync/internal/logging"
	"erpfin/bank-sync/internal/models"
	"erpfin/bank-sync/internal/openbanking"
	"erpfin/bank-sync/internal/textutils"

	"golang.org/x/oauth2"
)

// ProviderName identifies Pluggy connections.
const ProviderName = "pluggy"

// DefaultPageSize is used when Config.PageSize is not positive.
const DefaultPageSize = 500

var vocabulary = openbanking.NewVocabulary(
	[]string{"CREDIT", "income", "inflow", "deposit", "receipt"},
	[]string{"DEBIT", "expense", "outflow", "withdrawal", "payment"},
)

// Config holds the Pluggy API settings.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	PageSize     int
}

// Adapter fetches accounts and transactions from Pluggy.
type Adapter struct {
	cfg    Config
	client *openbanking.Client
	logger logging.Logger
}

// New validates cfg and returns an adapter. Missing credentials are reported as a
// ConfigError without touching the network.
func New(cfg Config, creds *openbanking.CredentialCache, opts openbanking.ClientOptions) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	logger := logging.OrDefault(opts.Logger)
	opts.Logger = logger

	auth := &authenticator{cfg: cfg}
	client := openbanking.NewClient(ProviderName, auth, creds, opts)
	auth.httpClient = client.HTTPClient()

	return &Adapter{
		cfg:    cfg,
		client: client,
		logger: logger.WithField(logging.FieldProvider, ProviderName),
	}, nil
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.ClientID) == "":
		return &openbanking.ConfigError{Provider: ProviderName, Field: "client_id", Reason: "is required"}
	case strings.TrimSpace(c.ClientSecret) == "":
		return &openbanking.ConfigError{Provider: ProviderName, Field: "client_secret", Reason: "is required"}
	case strings.TrimSpace(c.BaseURL) == "":
		return &openbanking.ConfigError{Provider: ProviderName, Field: "base_url", Reason: "is required"}
	}
	return nil
}

// Name returns "pluggy".
func (a *Adapter) Name() string {
	return ProviderName
}

// ListAccounts returns the accounts of an item.
func (a *Adapter) ListAccounts(ctx context.Context, itemID string) ([]models.Account, error) {
	if err := openbanking.ValidateItemID(itemID); err != nil {
		return nil, err
	}
	endpoint, err := openbanking.Endpoint(a.cfg.BaseURL, "/accounts", url.Values{"itemId": {itemID}})
	if err != nil {
		return nil, err
	}
	payloads, err := openbanking.FetchAll(ctx, a.client, endpoint, openbanking.FollowNextOrPageNumber, a.logger)
	if err != nil {
		return nil, fmt.Errorf("pluggy: failed to list accounts: %w", err)
	}

	accounts := make([]models.Account, 0, len(payloads))
	for _, p := range payloads {
		account := models.Account{
			ID:       p.String("id"),
			ItemID:   itemID,
			Name:     p.String("name", "marketingName"),
			Type:     p.String("type", "subtype"),
			Number:   p.String("number"),
			Currency: p.String("currencyCode"),
		}
		if balance, ok := p.Decimal("balance"); ok {
			account.Balance = balance
		}
		if account.ID == "" {
			a.logger.Warn("Skipping account without id", logging.Field{Key: logging.FieldItemID, Value: itemID})
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// FetchTransactions returns every transaction of an account within the window,
// following pagination.
func (a *Adapter) FetchTransactions(ctx context.Context, itemID, accountID string, window openbanking.DateWindow) ([]models.ProviderTransaction, error) {
	if err := openbanking.ValidateItemID(itemID); err != nil {
		return nil, err
	}
	endpoint, err := openbanking.Endpoint(a.cfg.BaseURL, "/transactions", url.Values{
		"item_id":    {itemID},
		"account_id": {accountID},
		"from":       {window.FromISO()},
		"to":         {window.ToISO()},
		"limit":      {strconv.Itoa(a.cfg.PageSize)},
	})
	if err != nil {
		return nil, err
	}

	logger := a.logger.WithFields(
		logging.Field{Key: logging.FieldItemID, Value: itemID},
		logging.Field{Key: logging.FieldAccountID, Value: accountID})
	payloads, err := openbanking.FetchAll(ctx, a.client, endpoint, openbanking.FollowNextOrPageNumber, logger)
	if err != nil {
		return nil, fmt.Errorf("pluggy: failed to fetch transactions: %w", err)
	}

	txs := make([]models.ProviderTransaction, 0, len(payloads))
	for _, p := range payloads {
		tx, ok := mapTransaction(p, itemID, accountID)
		if !ok {
			logger.Warn("Skipping transaction without amount",
				logging.Field{Key: logging.FieldExternalID, Value: p.String("id")})
			continue
		}
		txs = append(txs, tx)
	}
	logger.Info("Fetched transactions", logging.Field{Key: logging.FieldCount, Value: len(txs)})
	return txs, nil
}

func mapTransaction(p openbanking.Payload, itemID, accountID string) (models.ProviderTransaction, bool) {
	amount, ok := p.Decimal("amount")
	if !ok {
		return models.ProviderTransaction{}, false
	}
	tx := models.ProviderTransaction{
		ID:          p.String("id"),
		AccountID:   p.String("accountId"),
		ItemID:      itemID,
		Date:        p.String("date"),
		Description: textutils.CollapseWhitespace(p.String("description", "descriptionRaw")),
		Amount:      amount,
		Type:        p.String("type"),
		Currency:    p.String("currencyCode"),
		Category:    p.String("category"),
		Status:      p.String("status"),
		Metadata:    p,
	}
	if tx.AccountID == "" {
		tx.AccountID = accountID
	}
	if balance, ok := p.Decimal("balance"); ok {
		tx.Balance = &balance
	}
	tx.Direction = openbanking.ResolveDirection(vocabulary, tx.Type, amount)
	return tx, true
}

type authenticator struct {
	cfg        Config
	httpClient *http.Client
}

type authRequest struct {
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

type authResponse struct {
	APIKey    string `json:"apiKey"`
	ExpiresIn int64  `json:"expiresIn"`
}

// Authenticate exchanges the client credentials for an API key. Pluggy has no
// refresh flow, so previous is ignored.
func (a *authenticator) Authenticate(ctx context.Context, _ *oauth2.Token) (*oauth2.Token, error) {
	if err := a.cfg.validate(); err != nil {
		return nil, err
	}
	endpoint, err := openbanking.Endpoint(a.cfg.BaseURL, "/auth", nil)
	if err != nil {
		return nil, err
	}
	var resp authResponse
	err = openbanking.PostCredentials(ctx, a.httpClient, ProviderName, endpoint,
		authRequest{ClientID: a.cfg.ClientID, ClientSecret: a.cfg.ClientSecret}, nil, &resp)
	if err != nil {
		return nil, err
	}
	if resp.APIKey == "" {
		return nil, &openbanking.AuthError{Provider: ProviderName, Err: fmt.Errorf("response carries no apiKey")}
	}
	return openbanking.TokenWithTTL(resp.APIKey, "", time.Duration(resp.ExpiresIn)*time.Second), nil
}

// Apply sets the X-API-KEY header.
func (a *authenticator) Apply(req *http.Request, token *oauth2.Token) {
	req.Header.Set("X-API-KEY", token.AccessToken)
}
