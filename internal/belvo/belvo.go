// Package belvo implements the Belvo open-banking adapter.
package belvo

import (
	"context"
	"errors"
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

// ProviderName identifies Belvo connections.
const ProviderName = "belvo"

// DefaultPageSize is used when Config.PageSize is not positive.
const DefaultPageSize = 1000

var vocabulary = openbanking.NewVocabulary(
	[]string{"INFLOW", "credit", "income", "deposit", "receipt"},
	[]string{"OUTFLOW", "debit", "expense", "withdrawal", "payment"},
)

// Config holds the Belvo API settings.
type Config struct {
	BaseURL        string
	SecretID       string
	SecretPassword string
	PageSize       int
}

// Adapter fetches accounts and transactions of Belvo links.
type Adapter struct {
	cfg    Config
	client *openbanking.Client
	logger logging.Logger
}

// New validates cfg and returns an adapter.
func New(cfg Config, creds *openbanking.CredentialCache, opts openbanking.ClientOptions) (*Adapter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	logger := logging.OrDefault(opts.Logger).WithField(logging.FieldProvider, ProviderName)
	opts.Logger = logger

	auth := &authenticator{cfg: cfg, logger: logger}
	client := openbanking.NewClient(ProviderName, auth, creds, opts)
	auth.httpClient = client.HTTPClient()

	return &Adapter{cfg: cfg, client: client, logger: logger}, nil
}

func (c Config) validate() error {
	switch {
	case strings.TrimSpace(c.SecretID) == "":
		return &openbanking.ConfigError{Provider: ProviderName, Field: "secret_id", Reason: "is required"}
	case strings.TrimSpace(c.SecretPassword) == "":
		return &openbanking.ConfigError{Provider: ProviderName, Field: "secret_password", Reason: "is required"}
	case strings.TrimSpace(c.BaseURL) == "":
		return &openbanking.ConfigError{Provider: ProviderName, Field: "base_url", Reason: "is required"}
	}
	return nil
}

// Name returns "belvo".
func (a *Adapter) Name() string {
	return ProviderName
}

// ListAccounts returns the accounts of a link.
func (a *Adapter) ListAccounts(ctx context.Context, linkID string) ([]models.Account, error) {
	if err := openbanking.ValidateItemID(linkID); err != nil {
		return nil, err
	}
	endpoint, err := openbanking.Endpoint(a.cfg.BaseURL, "/api/accounts/", url.Values{"link": {linkID}})
	if err != nil {
		return nil, err
	}
	payloads, err := openbanking.FetchAll(ctx, a.client, endpoint, openbanking.FollowNext, a.logger)
	if err != nil {
		return nil, fmt.Errorf("belvo: failed to list accounts: %w", err)
	}

	accounts := make([]models.Account, 0, len(payloads))
	for _, p := range payloads {
		account := models.Account{
			ID:       p.String("id"),
			ItemID:   linkID,
			Name:     p.String("name"),
			Type:     p.String("type", "category"),
			Number:   p.String("number", "public_identification_value"),
			Currency: p.String("currency"),
		}
		if balance, ok := p.Decimal("balance.current", "balance.available"); ok {
			account.Balance = balance
		}
		if account.ID == "" {
			a.logger.Warn("Skipping account without id", logging.Field{Key: logging.FieldItemID, Value: linkID})
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// FetchTransactions returns every transaction of an account within the window.
func (a *Adapter) FetchTransactions(ctx context.Context, linkID, accountID string, window openbanking.DateWindow) ([]models.ProviderTransaction, error) {
	if err := openbanking.ValidateItemID(linkID); err != nil {
		return nil, err
	}
	endpoint, err := openbanking.Endpoint(a.cfg.BaseURL, "/api/transactions/", url.Values{
		"link":      {linkID},
		"account":   {accountID},
		"date_from": {window.FromISO()},
		"date_to":   {window.ToISO()},
		"page_size": {strconv.Itoa(a.cfg.PageSize)},
	})
	if err != nil {
		return nil, err
	}

	logger := a.logger.WithFields(
		logging.Field{Key: logging.FieldItemID, Value: linkID},
		logging.Field{Key: logging.FieldAccountID, Value: accountID})
	payloads, err := openbanking.FetchAll(ctx, a.client, endpoint, openbanking.FollowNext, logger)
	if err != nil {
		return nil, fmt.Errorf("belvo: failed to fetch transactions: %w", err)
	}

	txs := make([]models.ProviderTransaction, 0, len(payloads))
	for _, p := range payloads {
		tx, ok := mapTransaction(p, linkID, accountID)
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

// mapTransaction reads a Belvo transaction. Belvo reports positive amounts and puts
// the direction in "type", so the amount is signed here from the resolved direction.
func mapTransaction(p openbanking.Payload, linkID, accountID string) (models.ProviderTransaction, bool) {
	amount, ok := p.Decimal("amount")
	if !ok {
		return models.ProviderTransaction{}, false
	}
	tx := models.ProviderTransaction{
		ID:          p.String("id"),
		AccountID:   p.String("account.id"),
		ItemID:      linkID,
		Date:        p.String("value_date", "accounting_date", "collected_at"),
		Description: textutils.CollapseWhitespace(p.String("description", "reference")),
		Type:        p.String("type"),
		Currency:    p.String("currency"),
		Category:    p.String("category", "subcategory"),
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
	tx.Amount = tx.Direction.Signed(amount.Abs())
	return tx, true
}

type authenticator struct {
	cfg        Config
	httpClient *http.Client
	logger     logging.Logger
}

type tokenResponse struct {
	Access    string `json:"access"`
	Refresh   string `json:"refresh"`
	ExpiresIn int64  `json:"expires_in"`
}

// Authenticate renews with the refresh token of previous when there is one, and
// falls back to a full login with the secret keys.
func (a *authenticator) Authenticate(ctx context.Context, previous *oauth2.Token) (*oauth2.Token, error) {
	if err := a.cfg.validate(); err != nil {
		return nil, err
	}
	if previous != nil && previous.RefreshToken != "" {
		token, err := a.refresh(ctx, previous.RefreshToken)
		if err == nil {
			return token, nil
		}
		var authErr *openbanking.AuthError
		if !errors.As(err, &authErr) {
			return nil, err
		}
		a.logger.Debug("Refresh token rejected, logging in again",
			logging.Field{Key: logging.FieldStatus, Value: authErr.Status})
	}
	return a.login(ctx)
}

func (a *authenticator) login(ctx context.Context) (*oauth2.Token, error) {
	endpoint, err := openbanking.Endpoint(a.cfg.BaseURL, "/api/token/", nil)
	if err != nil {
		return nil, err
	}
	payload := map[string]string{"id": a.cfg.SecretID, "password": a.cfg.SecretPassword}
	return a.requestToken(ctx, endpoint, payload, "")
}

func (a *authenticator) refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	endpoint, err := openbanking.Endpoint(a.cfg.BaseURL, "/api/token/refresh/", nil)
	if err != nil {
		return nil, err
	}
	return a.requestToken(ctx, endpoint, map[string]string{"refresh": refreshToken}, refreshToken)
}

func (a *authenticator) requestToken(ctx context.Context, endpoint string, payload any, refreshToken string) (*oauth2.Token, error) {
	var resp tokenResponse
	err := openbanking.PostCredentials(ctx, a.httpClient, ProviderName, endpoint, payload,
		func(req *http.Request) { req.SetBasicAuth(a.cfg.SecretID, a.cfg.SecretPassword) }, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Access == "" {
		return nil, &openbanking.AuthError{Provider: ProviderName, Err: fmt.Errorf("response carries no access token")}
	}
	if resp.Refresh != "" {
		refreshToken = resp.Refresh
	}
	return openbanking.TokenWithTTL(resp.Access, refreshToken, time.Duration(resp.ExpiresIn)*time.Second), nil
}

// Apply sets the bearer token.
func (a *authenticator) Apply(req *http.Request, token *oauth2.Token) {
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
}
