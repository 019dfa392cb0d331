// Package npi looks up providers in the CMS NPI registry.
package npi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/valid8/valid8/internal/model"
)

const (
	defaultBaseURL = "https://npiregistry.cms.hhs.gov/api/"
	apiVersion     = "2.1"
	sourceName     = "NPI Registry API"
)

// Client fetches reference records from the NPI registry.
type Client interface {
	// Lookup returns the registry's record for an NPI number, or nil if the
	// registry has no match. Network and decode failures are returned as
	// errors for the caller to degrade on.
	Lookup(ctx context.Context, npiNumber string) (*model.ReferenceRecord, error)
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the registry endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an NPI registry client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// registryResponse mirrors the subset of the registry payload we read.
type registryResponse struct {
	Results []struct {
		Basic struct {
			NamePrefix string `json:"name_prefix"`
			FirstName  string `json:"first_name"`
			MiddleName string `json:"middle_name"`
			LastName   string `json:"last_name"`
			Credential string `json:"credential"`
		} `json:"basic"`
		Addresses []struct {
			AddressPurpose  string `json:"address_purpose"`
			Address1        string `json:"address_1"`
			Address2        string `json:"address_2"`
			City            string `json:"city"`
			State           string `json:"state"`
			PostalCode      string `json:"postal_code"`
			TelephoneNumber string `json:"telephone_number"`
		} `json:"addresses"`
		Taxonomies []struct {
			Primary bool   `json:"primary"`
			Desc    string `json:"desc"`
			License string `json:"license"`
		} `json:"taxonomies"`
	} `json:"results"`
}

func (c *httpClient) Lookup(ctx context.Context, npiNumber string) (*model.ReferenceRecord, error) {
	q := url.Values{}
	q.Set("number", npiNumber)
	q.Set("version", apiVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "npi: create request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "npi: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "npi: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("npi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed registryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "npi: unmarshal response")
	}

	if len(parsed.Results) == 0 {
		return nil, nil
	}

	result := parsed.Results[0]

	name := strings.Join(compact(
		result.Basic.NamePrefix,
		result.Basic.FirstName,
		result.Basic.MiddleName,
		result.Basic.LastName,
		result.Basic.Credential,
	), " ")

	ref := &model.ReferenceRecord{
		FullName:  name,
		NPINumber: npiNumber,
		Source:    sourceName,
	}

	// Prefer the practice LOCATION address over the MAILING one.
	if len(result.Addresses) > 0 {
		loc := result.Addresses[0]
		for _, a := range result.Addresses {
			if a.AddressPurpose == "LOCATION" {
				loc = a
				break
			}
		}
		ref.Address = strings.Join(compact(
			loc.Address1, loc.Address2, loc.City, loc.State, loc.PostalCode,
		), ", ")
		ref.Phone = loc.TelephoneNumber
	}

	if len(result.Taxonomies) > 0 {
		tax := result.Taxonomies[0]
		for _, t := range result.Taxonomies {
			if t.Primary {
				tax = t
				break
			}
		}
		ref.Specialty = tax.Desc
		ref.LicenseNumber = tax.License
	}

	return ref, nil
}

// compact drops empty strings from its arguments.
func compact(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
