package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/developkariyer/IWApim/internal/core"
)

func TestBasicExchanger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client", user)
		assert.Equal(t, "secret", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "https://api.ebay.com/oauth/api_scope", r.PostForm.Get("scope"))
		w.Write([]byte(`{"access_token":"bearer-1","token_type":"Bearer","expires_in":299}`))
	}))
	defer srv.Close()

	ex := &BasicExchanger{
		URL: srv.URL, ClientID: "client", ClientSecret: "secret",
		Form: url.Values{"scope": {"https://api.ebay.com/oauth/api_scope"}},
	}
	tok, err := ex.Exchange(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "bearer-1", tok.AccessToken)
	assert.Equal(t, int64(299), tok.ExpiresIn)
}

func TestClientCredentialsExchanger_SendsAudience(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://api.wayfair.io/", body["audience"])
		assert.Equal(t, "client_credentials", body["grant_type"])
		w.Write([]byte(`{"access_token":"wf","expires_in":43200}`))
	}))
	defer srv.Close()

	ex := &ClientCredentialsExchanger{URL: srv.URL, ClientID: "id", ClientSecret: "s", Audience: "https://api.wayfair.io/"}
	tok, err := ex.Exchange(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "wf", tok.AccessToken)
}

func TestRefreshExchanger_PrefersRotatedToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "rotated", r.PostForm.Get("refresh_token"))
		w.Write([]byte(`{"access_token":"Atza|x","expires_in":3600}`))
	}))
	defer srv.Close()

	ex := &RefreshExchanger{URL: srv.URL, ClientID: "amzn", ClientSecret: "s", RefreshToken: "configured"}
	tok, err := ex.Exchange(context.Background(), &Token{RefreshToken: "rotated"})
	require.NoError(t, err)
	assert.Equal(t, "Atza|x", tok.AccessToken)
	assert.Equal(t, "rotated", tok.RefreshToken)
}

func TestPasswordExchanger(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{name: "ok", status: http.StatusOK, body: `{"token":"ws-token"}`, want: "ws-token"},
		{name: "rejected", status: http.StatusUnauthorized, body: `{"message":"bad credentials"}`, wantErr: true},
		{name: "no token", status: http.StatusOK, body: `{}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var body map[string]string
				json.NewDecoder(r.Body).Decode(&body)
				assert.Equal(t, "ops@example.com", body["email"])
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ex := &PasswordExchanger{URL: srv.URL, Email: "ops@example.com", Password: "pw"}
			tok, err := ex.Exchange(context.Background(), nil)
			if tt.wantErr {
				assert.ErrorIs(t, err, core.ErrAuth)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tok.AccessToken)
		})
	}
}

func TestAuthEngines(t *testing.T) {
	m := NewManager("amazon", nil, &countingExchanger{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	engine := Chain{
		NewTokenHeaderAuth(m, "x-amz-access-token"),
		NewHeaderAuth(map[string]string{"x-api-key": "k"}),
	}
	require.NoError(t, engine.SetApiKey(context.Background(), req))
	assert.Equal(t, "fresh", req.Header.Get("x-amz-access-token"))
	assert.Equal(t, "k", req.Header.Get("x-api-key"))

	require.NoError(t, NewTokenAuth(m).SetApiKey(context.Background(), req))
	assert.Equal(t, "fresh", ExtractBearer(req.Header.Get("Authorization")))

	assert.Nil(t, NewBearerAuth(""))
}
