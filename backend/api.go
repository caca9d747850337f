package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/jrsteele09/account-dashboard/internal/errors"
)

// MinSearchTermLength is the shortest term sent to the account search.
const MinSearchTermLength = 2

const (
	pathAccounts         = "/accounts"
	pathAccountSearch    = "/accounts/search"
	pathClientes         = "/clientes"
	pathDashboardSummary = "/dashboard/summary"
)

type Account struct {
	ID   string `json:"id"`
	Key  string `json:"key,omitempty"`
	Name string `json:"name"`
}

type AccountDetail struct {
	Account   *AccountInfo `json:"account"`
	Contacts  []Contact    `json:"contacts"`
	Addresses []Address    `json:"addresses"`
}

type AccountInfo struct {
	Name      string `json:"Name"`
	Code      string `json:"Code"`
	VATNumber string `json:"VATNumber"`
	Status    string `json:"Status"`
	Country   string `json:"Country"`
}

type Contact struct {
	Data struct {
		FirstName string `json:"FirstName"`
		LastName  string `json:"LastName"`
		Email     string `json:"Email"`
		Phone     string `json:"Phone"`
	} `json:"data"`
}

type Address struct {
	Data struct {
		Type       string `json:"Type"`
		Street     string `json:"Street"`
		City       string `json:"City"`
		PostalCode string `json:"PostalCode"`
		Country    string `json:"Country"`
	} `json:"data"`
}

type Cliente struct {
	ID        int    `json:"id"`
	Nombre    string `json:"nombre"`
	Contacto  string `json:"contacto"`
	Direccion string `json:"direccion"`
	Telefono  string `json:"telefono"`
	Email     string `json:"email"`
	Tipo      string `json:"tipo"`
}

type DashboardSummary struct {
	Metrics     []Metric     `json:"metrics"`
	RecentSales []RecentSale `json:"recentSales"`
	Automations []Automation `json:"automations"`
}

type Metric struct {
	Title       string `json:"title"`
	Value       string `json:"value"`
	Change      string `json:"change"`
	Description string `json:"description"`
}

type RecentSale struct {
	Client string `json:"client"`
	Date   string `json:"date"`
	Amount string `json:"amount"`
}

type Automation struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Update string `json:"update"`
}

func (c *Client) ListAccounts(ctx context.Context, sess Session) ([]Account, error) {
	var accounts []Account
	if err := c.Do(ctx, sess, http.MethodGet, pathAccounts, nil, nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SearchAccounts returns the accounts matching term. Terms shorter than
// MinSearchTermLength are rejected without calling the backend.
func (c *Client) SearchAccounts(ctx context.Context, sess Session, term string) ([]Account, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < MinSearchTermLength {
		return nil, errors.ErrSearchTermTooShort
	}

	var raw json.RawMessage
	if err := c.Do(ctx, sess, http.MethodPost, pathAccountSearch, nil, map[string]string{"term": term}, &raw); err != nil {
		return nil, err
	}
	return decodeSearchResults(raw)
}

// decodeSearchResults accepts {results: [...]}, a bare array, or {results: {...}}.
func decodeSearchResults(raw json.RawMessage) ([]Account, error) {
	if len(raw) == 0 {
		return []Account{}, nil
	}

	var envelope struct {
		Results json.RawMessage `json:"results"`
		Total   int             `json:"total"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && len(envelope.Results) > 0 {
		var list []Account
		if err := json.Unmarshal(envelope.Results, &list); err == nil {
			return nonNil(list), nil
		}
		var single Account
		if err := json.Unmarshal(envelope.Results, &single); err == nil {
			return []Account{single}, nil
		}
	}

	var list []Account
	if err := json.Unmarshal(raw, &list); err == nil {
		return nonNil(list), nil
	}
	return nil, &errors.UpstreamError{Status: http.StatusBadGateway, Message: "unexpected search response"}
}

func nonNil(list []Account) []Account {
	if list == nil {
		return []Account{}
	}
	return list
}

func (c *Client) AccountDetails(ctx context.Context, sess Session, accountID string) (*AccountDetail, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, errors.ErrMissingAccountID
	}
	detail := &AccountDetail{}
	path := "/account/" + url.PathEscape(accountID) + "/details"
	if err := c.Do(ctx, sess, http.MethodGet, path, nil, nil, detail); err != nil {
		return nil, err
	}
	return detail, nil
}

func (c *Client) ListClientes(ctx context.Context, sess Session) ([]Cliente, error) {
	var clientes []Cliente
	if err := c.Do(ctx, sess, http.MethodGet, pathClientes, nil, nil, &clientes); err != nil {
		return nil, err
	}
	return clientes, nil
}

func (c *Client) DashboardSummary(ctx context.Context, sess Session) (*DashboardSummary, error) {
	summary := &DashboardSummary{}
	if err := c.Do(ctx, sess, http.MethodGet, pathDashboardSummary, nil, nil, summary); err != nil {
		return nil, err
	}
	return summary, nil
}
