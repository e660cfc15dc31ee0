// Package client holds outbound HTTP adapters to third-party APIs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/boddenberg/account-manager-go/internal/domain"
	"github.com/boddenberg/account-manager-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

const plaidService = "plaid"

// PlaidEnvironments maps PLAID_ENV to API hosts. Unknown values use sandbox.
var PlaidEnvironments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

// PlaidBaseURL resolves the API host for env.
func PlaidBaseURL(env string) string {
	if u, ok := PlaidEnvironments[env]; ok {
		return u
	}
	return PlaidEnvironments["sandbox"]
}

// PlaidClient talks to the Plaid JSON API.
type PlaidClient struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewPlaidClient creates a new PlaidClient.
func NewPlaidClient(httpClient *http.Client, baseURL, clientID, secret string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *PlaidClient {
	return &PlaidClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		clientID:   clientID,
		secret:     secret,
		cb:         cb,
		cfg:        cfg,
		logger:     logger,
	}
}

// ============================================================
// Wire types
// ============================================================

type plaidError struct {
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
	RequestID    string `json:"request_id"`
}

type linkTokenRequest struct {
	ClientID     string        `json:"client_id"`
	Secret       string        `json:"secret"`
	ClientName   string        `json:"client_name"`
	User         linkTokenUser `json:"user"`
	Products     []string      `json:"products"`
	CountryCodes []string      `json:"country_codes"`
	Language     string        `json:"language"`
}

type linkTokenUser struct {
	ClientUserID string `json:"client_user_id"`
}

type linkTokenResponse struct {
	LinkToken string `json:"link_token"`
}

type exchangeRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	PublicToken string `json:"public_token"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
}

type accountsRequest struct {
	ClientID    string `json:"client_id"`
	Secret      string `json:"secret"`
	AccessToken string `json:"access_token"`
}

type accountsResponse struct {
	Accounts []struct {
		AccountID string `json:"account_id"`
		Name      string `json:"name"`
		Type      string `json:"type"`
		Balances  struct {
			Current         *float64 `json:"current"`
			ISOCurrencyCode *string  `json:"iso_currency_code"`
		} `json:"balances"`
	} `json:"accounts"`
	Item struct {
		ItemID          string  `json:"item_id"`
		InstitutionID   *string `json:"institution_id"`
		InstitutionName *string `json:"institution_name"`
	} `json:"item"`
}

// ClientName is shown to the user inside the Link flow.
const ClientName = "Account Manager"

// ============================================================
// Operations
// ============================================================

// CreateLinkToken creates a Link token for initializing the Link UI.
func (c *PlaidClient) CreateLinkToken(ctx context.Context, clientUserID string) (string, error) {
	ctx, span := tracer.Start(ctx, "PlaidClient.CreateLinkToken")
	defer span.End()

	var out linkTokenResponse
	err := c.post(ctx, "/link/token/create", linkTokenRequest{
		ClientID:     c.clientID,
		Secret:       c.secret,
		ClientName:   ClientName,
		User:         linkTokenUser{ClientUserID: clientUserID},
		Products:     []string{"transactions"},
		CountryCodes: []string{"US"},
		Language:     "en",
	}, &out)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out.LinkToken, nil
}

// ExchangePublicToken swaps a Link public token for a long-lived access token.
func (c *PlaidClient) ExchangePublicToken(ctx context.Context, publicToken string) (*domain.TokenExchange, error) {
	ctx, span := tracer.Start(ctx, "PlaidClient.ExchangePublicToken")
	defer span.End()

	var out exchangeResponse
	err := c.post(ctx, "/item/public_token/exchange", exchangeRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		PublicToken: publicToken,
	}, &out)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("plaid.item_id", out.ItemID))
	return &domain.TokenExchange{AccessToken: out.AccessToken, ItemID: out.ItemID}, nil
}

// GetAccounts lists the accounts and current balances behind an access token.
func (c *PlaidClient) GetAccounts(ctx context.Context, accessToken string) (*domain.ProviderAccounts, error) {
	ctx, span := tracer.Start(ctx, "PlaidClient.GetAccounts")
	defer span.End()

	var out accountsResponse
	err := c.post(ctx, "/accounts/get", accountsRequest{
		ClientID:    c.clientID,
		Secret:      c.secret,
		AccessToken: accessToken,
	}, &out)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := &domain.ProviderAccounts{Accounts: make([]domain.ProviderAccount, 0, len(out.Accounts))}
	if out.Item.InstitutionID != nil {
		result.InstitutionID = *out.Item.InstitutionID
	}
	if out.Item.InstitutionName != nil {
		result.InstitutionName = *out.Item.InstitutionName
	}
	for _, a := range out.Accounts {
		pa := domain.ProviderAccount{
			ProviderID:     a.AccountID,
			Name:           a.Name,
			Type:           a.Type,
			CurrentBalance: a.Balances.Current,
		}
		if a.Balances.ISOCurrencyCode != nil {
			pa.Currency = *a.Balances.ISOCurrencyCode
		}
		result.Accounts = append(result.Accounts, pa)
	}
	span.SetAttributes(attribute.Int("plaid.accounts", len(result.Accounts)))
	return result, nil
}

// post sends body to path through the breaker with retries. Plaid rejects
// bad input with 4xx, which is returned as *domain.ErrValidation without retry.
// Timeouts that survive the retries surface as *domain.ErrTimeout.
func (c *PlaidClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode plaid request: %w", err)
	}

	_, err = resilience.Execute(ctx, c.cb, c.cfg, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return struct{}{}, resilience.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-Id", uuid.NewString())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return struct{}{}, err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(raw, out); err != nil {
				return struct{}{}, resilience.Permanent(fmt.Errorf("decode plaid response: %w", err))
			}
			return struct{}{}, nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
			var pe plaidError
			_ = json.Unmarshal(raw, &pe)
			c.logger.Warn("plaid rejected request",
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("error_code", pe.ErrorCode),
				zap.String("request_id", pe.RequestID),
			)
			msg := pe.ErrorMessage
			if msg == "" {
				msg = fmt.Sprintf("plaid returned status %d", resp.StatusCode)
			}
			field := pe.ErrorCode
			if field == "" {
				field = "request"
			}
			return struct{}{}, resilience.Permanent(&domain.ErrValidation{Field: field, Message: msg})
		default:
			return struct{}{}, fmt.Errorf("plaid %s returned status %d", path, resp.StatusCode)
		}
	})
	if err == nil {
		return nil
	}

	var (
		v    *domain.ErrValidation
		open *domain.ErrCircuitOpen
	)
	if errors.As(err, &v) || errors.As(err, &open) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.ErrTimeout{Operation: plaidService + " " + path}
	}
	return &domain.ErrExternalService{Service: plaidService, Err: err}
}
