package meraki

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/steps"
)

var _ steps.Client = (*Client)(nil)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = server.URL + "/api/v1/"
	cfg.APIKey = "test-key"
	return NewClient(cfg, testLogger)
}

func TestListOrganizations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/organizations", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get(APIKeyHeader))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id":"1","name":"Acme","url":"https://n1.meraki.com/o/1"}]`)
	})

	orgs, err := client.ListOrganizations(context.Background())
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "1", orgs[0].ID)
	assert.Equal(t, "Acme", orgs[0].Name)
}

func TestListDevices_Pagination(t *testing.T) {
	var serverURL string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/networks/N_1/devices", r.URL.Path)
		if r.URL.Query().Get("startingAfter") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/api/v1/networks/N_1/devices?startingAfter=Q1>; rel=next, <%s/api/v1/networks/N_1/devices>; rel=first`, serverURL, serverURL))
			fmt.Fprint(w, `[{"serial":"Q1","mac":"00:11:22:33:44:55","networkId":"N_1"}]`)
			return
		}
		fmt.Fprint(w, `[{"serial":"Q2","mac":"00:11:22:33:44:66","networkId":"N_1","wanIp":"1.2.3.4"}]`)
	})
	serverURL = client.baseURL[:len(client.baseURL)-len("/api/v1")]

	devices, err := client.ListDevices(context.Background(), "N_1")
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, "Q1", devices[0].Serial)
	assert.Equal(t, "Q2", devices[1].Serial)
}

func TestList_Errors(t *testing.T) {
	t.Run("non-2xx becomes a FetchError with status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"errors":["Invalid API key"]}`)
		})

		_, err := client.ListNetworks(context.Background(), "1")
		require.Error(t, err)

		var fetchErr *ierrors.FetchError
		require.ErrorAs(t, err, &fetchErr)
		assert.Equal(t, http.StatusUnauthorized, fetchErr.StatusCode)
		assert.Equal(t, "ListNetworks", fetchErr.Operation)
		assert.Equal(t, "1", fetchErr.ParentID)
		assert.Contains(t, err.Error(), "Invalid API key")
	})

	t.Run("malformed JSON is a FetchError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `{"not":"a list"}`)
		})

		_, err := client.ListVlans(context.Background(), "N_1")
		assert.True(t, ierrors.IsFetchError(err))
	})

	t.Run("record failing validation is a ConversionError", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, `[{"name":"no id"}]`)
		})

		_, err := client.ListAdmins(context.Background(), "1")
		require.Error(t, err)
		assert.True(t, ierrors.IsConversionError(err))
		assert.Contains(t, err.Error(), "'ID' failed rule 'required'")
	})

	t.Run("transport failure is a FetchError", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BaseURL = "http://127.0.0.1:1"
		client := NewClient(cfg, testLogger)

		_, err := client.ListSSIDs(context.Background(), "N_1")
		assert.True(t, ierrors.IsFetchError(err))
	})
}

func TestListSSIDs_EmptyList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/networks/N_1/wireless/ssids", r.URL.Path)
		fmt.Fprint(w, `[]`)
	})

	ssids, err := client.ListSSIDs(context.Background(), "N_1")
	require.NoError(t, err)
	assert.Empty(t, ssids)
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"next only", `<https://api.meraki.com/api/v1/x?startingAfter=2>; rel=next`, "https://api.meraki.com/api/v1/x?startingAfter=2"},
		{"quoted rel", `<https://a/first>; rel="first", <https://a/next>; rel="next"`, "https://a/next"},
		{"no next", `<https://a/first>; rel=first, <https://a/last>; rel=last`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextLink(tt.header))
		})
	}
}
