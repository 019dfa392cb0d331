package npi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryFixture = `{
	"result_count": 1,
	"results": [{
		"basic": {
			"name_prefix": "DR.",
			"first_name": "JANE",
			"middle_name": "",
			"last_name": "DOE",
			"credential": "MD"
		},
		"addresses": [
			{
				"address_purpose": "MAILING",
				"address_1": "PO BOX 12",
				"city": "AUSTIN",
				"state": "TX",
				"postal_code": "78701",
				"telephone_number": "512-555-0000"
			},
			{
				"address_purpose": "LOCATION",
				"address_1": "100 MAIN ST",
				"address_2": "SUITE 4",
				"city": "AUSTIN",
				"state": "TX",
				"postal_code": "78702",
				"telephone_number": "512-555-0199"
			}
		],
		"taxonomies": [
			{"primary": false, "desc": "Internal Medicine", "license": "A11111"},
			{"primary": true, "desc": "Cardiology", "license": "B22222"}
		]
	}]
}`

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "1234567890", r.URL.Query().Get("number"))
		assert.Equal(t, "2.1", r.URL.Query().Get("version"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(registryFixture))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))

	ref, err := client.Lookup(context.Background(), "1234567890")
	require.NoError(t, err)
	require.NotNil(t, ref)

	assert.Equal(t, "DR. JANE DOE MD", ref.FullName)
	// LOCATION address wins over MAILING.
	assert.Equal(t, "100 MAIN ST, SUITE 4, AUSTIN, TX, 78702", ref.Address)
	assert.Equal(t, "512-555-0199", ref.Phone)
	// Primary taxonomy wins.
	assert.Equal(t, "Cardiology", ref.Specialty)
	assert.Equal(t, "B22222", ref.LicenseNumber)
	assert.Equal(t, "1234567890", ref.NPINumber)
	assert.Equal(t, "NPI Registry API", ref.Source)
}

func TestLookup_NoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result_count": 0, "results": []}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))

	ref, err := client.Lookup(context.Background(), "0000000000")
	require.NoError(t, err)
	assert.Nil(t, ref)
}

func TestLookup_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))

	_, err := client.Lookup(context.Background(), "1234567890")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
}

func TestLookup_FallbackAddressAndTaxonomy(t *testing.T) {
	// No LOCATION address and no primary taxonomy: first entries are used.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"results": [{
				"basic": {"first_name": "SAM", "last_name": "LEE"},
				"addresses": [{"address_purpose": "MAILING", "address_1": "1 ELM", "city": "DENVER", "state": "CO", "postal_code": "80014", "telephone_number": "303-555-1000"}],
				"taxonomies": [{"primary": false, "desc": "Dermatology", "license": "C3"}]
			}]
		}`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))

	ref, err := client.Lookup(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, "SAM LEE", ref.FullName)
	assert.Equal(t, "1 ELM, DENVER, CO, 80014", ref.Address)
	assert.Equal(t, "Dermatology", ref.Specialty)
}
