package chdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"
)

var (
	// ErrAccountsNotFull marks companies whose last accounts are not of
	// type "full" or "group"; small/abridged filings carry no usable
	// statement and are skipped.
	ErrAccountsNotFull = errors.New("last accounts are not full or group")

	// ErrNoStatementDocument marks a filing history with no downloadable
	// full-statement document (paper filed, or no XHTML rendition).
	ErrNoStatementDocument = errors.New("no full statement document available")
)

// FilingRef points at one downloadable statement in a company's filing
// history.
type FilingRef struct {
	CompanyNumber string
	Date          string // made-up date of the accounts, YYYY-MM-DD
	MetadataURL   string // document metadata endpoint
	PaperFiled    bool
}

// RegistryClient talks to the Companies House API: company profiles, filing
// histories, and statement document downloads. Calls are paced by a fixed
// inter-call delay to respect the API quota, and bounded by a fixed
// per-request timeout; both come from the Config, never from literals.
type RegistryClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewRegistryClient builds a client from explicit configuration.
func NewRegistryClient(cfg Config, logger *slog.Logger) *RegistryClient {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	return &RegistryClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Every(cfg.RequestInterval), 1),
		logger:  logger,
	}
}

// get performs one paced, authenticated request. The API key is passed as
// the basic-auth username with an empty password.
func (c *RegistryClient) get(ctx context.Context, url, accept string) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

type registryAddress struct {
	AddressLine1 string `json:"address_line_1"`
	AddressLine2 string `json:"address_line_2"`
	Locality     string `json:"locality"`
	PostalCode   string `json:"postal_code"`
	Country      string `json:"country"`
}

type registryProfile struct {
	CompanyName             string          `json:"company_name"`
	RegisteredOfficeAddress registryAddress `json:"registered_office_address"`
	SICCodes                []string        `json:"sic_codes"`
	Accounts                struct {
		LastAccounts struct {
			Type     string `json:"type"`
			MadeUpTo string `json:"made_up_to"`
		} `json:"last_accounts"`
	} `json:"accounts"`
}

// CompanyProfile fetches the company snapshot used to populate statement
// rows. Companies filing anything other than full or group accounts are
// rejected with ErrAccountsNotFull.
func (c *RegistryClient) CompanyProfile(ctx context.Context, companyNumber string) (*CompanySnapshot, error) {
	c.logger.Debug("fetching company profile", "company", companyNumber)

	body, status, err := c.get(ctx, c.baseURL+"/company/"+companyNumber, "")
	if err != nil {
		return nil, fmt.Errorf("company %s: %w", companyNumber, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("company %s: %w", companyNumber, ErrCompanyNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("company %s: registry returned status %d", companyNumber, status)
	}

	var profile registryProfile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("company %s: failed to parse profile: %w", companyNumber, err)
	}

	accountsType := strings.ToLower(profile.Accounts.LastAccounts.Type)
	if accountsType != "full" && accountsType != "group" {
		return nil, fmt.Errorf("company %s has %q accounts: %w", companyNumber, accountsType, ErrAccountsNotFull)
	}

	return &CompanySnapshot{
		CompanyNumber: companyNumber,
		CompanyName:   profile.CompanyName,
		AddressLine1:  profile.RegisteredOfficeAddress.AddressLine1,
		AddressLine2:  profile.RegisteredOfficeAddress.AddressLine2,
		Locality:      profile.RegisteredOfficeAddress.Locality,
		PostalCode:    profile.RegisteredOfficeAddress.PostalCode,
		Country:       profile.RegisteredOfficeAddress.Country,
		SICCodes:      profile.SICCodes,
	}, nil
}

type filingHistory struct {
	Items []struct {
		Type              string `json:"type"`
		Date              string `json:"date"`
		PaperFiled        bool   `json:"paper_filed"`
		DescriptionValues struct {
			MadeUpDate string `json:"made_up_date"`
		} `json:"description_values"`
		Links struct {
			DocumentMetadata string `json:"document_metadata"`
		} `json:"links"`
	} `json:"items"`
}

// LatestFullStatement walks a company's filing history and returns a
// reference to its most recent annual accounts ("AA") document.
func (c *RegistryClient) LatestFullStatement(ctx context.Context, companyNumber string) (*FilingRef, error) {
	c.logger.Debug("fetching filing history", "company", companyNumber)

	body, status, err := c.get(ctx, c.baseURL+"/company/"+companyNumber+"/filing-history", "")
	if err != nil {
		return nil, fmt.Errorf("filing history %s: %w", companyNumber, err)
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("filing history %s: %w", companyNumber, ErrCompanyNotFound)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("filing history %s: registry returned status %d", companyNumber, status)
	}

	var history filingHistory
	if err := json.Unmarshal(body, &history); err != nil {
		return nil, fmt.Errorf("filing history %s: failed to parse: %w", companyNumber, err)
	}

	for _, item := range history.Items {
		if item.Type != "AA" {
			continue
		}
		ref := &FilingRef{
			CompanyNumber: companyNumber,
			Date:          item.DescriptionValues.MadeUpDate,
			MetadataURL:   item.Links.DocumentMetadata,
			PaperFiled:    item.PaperFiled,
		}
		if ref.Date == "" {
			ref.Date = item.Date
		}
		if ref.PaperFiled || ref.MetadataURL == "" {
			return nil, fmt.Errorf("filing history %s: %w", companyNumber, ErrNoStatementDocument)
		}
		return ref, nil
	}

	return nil, fmt.Errorf("filing history %s: no annual accounts filing: %w", companyNumber, ErrNoStatementDocument)
}

type documentMetadata struct {
	Links struct {
		Document string `json:"document"`
	} `json:"links"`
	Resources map[string]json.RawMessage `json:"resources"`
}

const xhtmlContentType = "application/xhtml+xml"

// DownloadStatement resolves a document-metadata URL to its XHTML rendition
// and downloads the content. Filings with no XHTML resource yield
// ErrNoStatementDocument.
func (c *RegistryClient) DownloadStatement(ctx context.Context, metadataURL string) ([]byte, error) {
	body, status, err := c.get(ctx, metadataURL, "")
	if err != nil {
		return nil, fmt.Errorf("document metadata: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("document metadata: registry returned status %d", status)
	}

	var meta documentMetadata
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil, fmt.Errorf("document metadata: failed to parse: %w", err)
	}
	if _, ok := meta.Resources[xhtmlContentType]; !ok {
		return nil, fmt.Errorf("document metadata: %w", ErrNoStatementDocument)
	}
	if meta.Links.Document == "" {
		return nil, fmt.Errorf("document metadata: %w", ErrNoStatementDocument)
	}

	c.logger.Debug("downloading statement document", "url", meta.Links.Document)

	content, status, err := c.get(ctx, meta.Links.Document, xhtmlContentType)
	if err != nil {
		return nil, fmt.Errorf("document download: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("document download: registry returned status %d", status)
	}

	return content, nil
}
