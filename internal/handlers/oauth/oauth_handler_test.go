package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/template/html/v2"
	"github.com/khanghh/mcpauth/internal/audit"
	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/authcode"
	"github.com/khanghh/mcpauth/internal/middlewares"
	"github.com/khanghh/mcpauth/internal/middlewares/sessions"
	"github.com/khanghh/mcpauth/internal/ratelimit"
	"github.com/khanghh/mcpauth/internal/testutil"
	"github.com/khanghh/mcpauth/internal/users"
	"github.com/khanghh/mcpauth/templates"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testMasterKey   = "test-master-key"
	testRedirectURI = "https://client.example/cb"
)

type eventLog struct {
	mu     sync.Mutex
	events []audit.Event
}

func (l *eventLog) Record(_ context.Context, event audit.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var types []string
	for _, e := range l.events {
		types = append(types, e.Type)
	}
	return types
}

type envConfig struct {
	loginURL string
	tokenMax int
}

type testEnv struct {
	app       *fiber.App
	fixture   *testutil.Fixture
	grants    *auth.GrantService
	validator *auth.AccessValidator
	signer    *ConsentSigner
	events    *eventLog
}

func newTestEnv(t *testing.T, cfg envConfig) *testEnv {
	t.Helper()
	if cfg.tokenMax == 0 {
		cfg.tokenMax = 100
	}
	db := testutil.NewTestDB(t)
	fixture := testutil.Seed(t, db)
	events := &eventLog{}
	userService := users.NewUserService(users.NewUserRepository(db))
	authRepo := auth.NewAuthorizationRepository(db)
	limiter := ratelimit.NewLimiter(ratelimit.NewGormLedger(db))
	grants := auth.NewGrantService(authRepo, authcode.NewStore(), limiter, userService, auth.WithAuditRecorder(events))
	signer := NewConsentSigner(testMasterKey, 10*time.Minute, nil)
	handler := NewOAuthHandler(grants, userService, signer, events, cfg.loginURL)
	metadata, err := NewMetadataHandler("https://auth.example")
	require.NoError(t, err)

	app := fiber.New(fiber.Config{
		Views:        html.NewFileSystem(http.FS(templates.FS), ".html"),
		ErrorHandler: middlewares.NewErrorHandler(time.Now),
	})
	app.Get("/.well-known/oauth-authorization-server", metadata.GetServerMetadata)
	app.Get("/.well-known/oauth-protected-resource", metadata.GetResourceMetadata)
	tokenPolicy := ratelimit.Policy{Category: ratelimit.CategoryToken, Window: time.Hour, Max: cfg.tokenMax}
	app.Post("/oauth/token", middlewares.RateLimit(limiter, tokenPolicy, middlewares.ByIP), handler.PostToken)
	app.Use(sessions.New(sessions.Config{Storage: memory.New(), SessionMaxAge: time.Hour, CookieName: "sid"}))
	app.Get("/test/login/:uid", func(ctx *fiber.Ctx) error {
		uid, _ := ctx.ParamsInt("uid")
		sessions.Get(ctx).Save(sessions.SessionData{UserID: uint(uid), LoginTime: time.Now()})
		return ctx.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/oauth/authorize", handler.GetAuthorize)
	app.Post("/oauth/authorize", handler.PostAuthorize)
	app.Get("/oauth/authorizations", handler.GetAuthorizations)
	app.Post("/oauth/authorizations/:id/revoke", handler.PostRevokeAuthorization)

	return &testEnv{
		app:       app,
		fixture:   fixture,
		grants:    grants,
		validator: auth.NewAccessValidator(authRepo, userService),
		signer:    signer,
		events:    events,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *http.Response {
	t.Helper()
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// login returns a session cookie for userID.
func (e *testEnv) login(t *testing.T, userID uint) *http.Cookie {
	t.Helper()
	resp := e.do(t, httptest.NewRequest(http.MethodGet, "/test/login/"+strconv.Itoa(int(userID)), nil))
	for _, c := range resp.Cookies() {
		if c.Name == "sid" {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

func authorizeQuery(extra url.Values) string {
	q := url.Values{
		"response_type":         {"code"},
		"client_id":             {"client-1"},
		"client_name":           {"Claude"},
		"redirect_uri":          {testRedirectURI},
		"state":                 {"st4te"},
		"code_challenge":        {oauth2.S256ChallengeFromVerifier("verifier-verifier-verifier-verifier-verifier")},
		"code_challenge_method": {"S256"},
	}
	for k, v := range extra {
		q[k] = v
	}
	return "/oauth/authorize?" + q.Encode()
}

var hiddenInput = regexp.MustCompile(`name="(request|_csrf)" value="([^"]+)"`)

// consentForm renders the consent page for the session and returns its hidden fields.
func (e *testEnv) consentForm(t *testing.T, cookie *http.Cookie, target string) url.Values {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.AddCookie(cookie)
	resp := e.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	form := url.Values{}
	for _, m := range hiddenInput.FindAllStringSubmatch(string(body), -1) {
		form.Set(m[1], m[2])
	}
	require.NotEmpty(t, form.Get("request"))
	require.NotEmpty(t, form.Get("_csrf"))
	return form
}

func (e *testEnv) postForm(t *testing.T, cookie *http.Cookie, target string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return e.do(t, req)
}

func decodeError(t *testing.T, resp *http.Response) auth.ErrorResponse {
	t.Helper()
	var body auth.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestAuthorizeRejectsInvalidRequest(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	cookie := env.login(t, env.fixture.Alice.ID)

	tests := []struct {
		name  string
		extra url.Values
	}{
		{"missing redirect_uri", url.Values{"redirect_uri": {""}}},
		{"javascript redirect", url.Values{"redirect_uri": {"javascript:alert(1)"}}},
		{"fragment in redirect", url.Values{"redirect_uri": {"https://client.example/cb#x"}}},
		{"unsupported response_type", url.Values{"response_type": {"token"}}},
		{"unknown challenge method", url.Values{"code_challenge_method": {"S512"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, authorizeQuery(tt.extra), nil)
			req.AddCookie(cookie)
			resp := env.do(t, req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Empty(t, resp.Header.Get(fiber.HeaderLocation))
			assert.Equal(t, "invalid_request", decodeError(t, resp).Error)
		})
	}
}

func TestAuthorizeRequiresLogin(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	resp := env.do(t, httptest.NewRequest(http.MethodGet, authorizeQuery(nil), nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env = newTestEnv(t, envConfig{loginURL: "https://notes.example/login"})
	resp = env.do(t, httptest.NewRequest(http.MethodGet, authorizeQuery(nil), nil))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "notes.example", location.Host)
	assert.True(t, strings.HasPrefix(location.Query().Get("next"), "/oauth/authorize?"))
}

func TestConsentPageListsOrganizations(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	req := httptest.NewRequest(http.MethodGet, authorizeQuery(nil), nil)
	req.AddCookie(env.login(t, env.fixture.Alice.ID))
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))

	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Claude")
	assert.Contains(t, string(body), "client.example")
	assert.Contains(t, string(body), `value="100"`)
	assert.NotContains(t, string(body), `value="200"`)
}

func TestConsentDeny(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	cookie := env.login(t, env.fixture.Alice.ID)
	form := env.consentForm(t, cookie, authorizeQuery(nil))
	form.Set("decision", "deny")

	resp := env.postForm(t, cookie, "/oauth/authorize", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "client.example", location.Host)
	assert.Equal(t, "access_denied", location.Query().Get("error"))
	assert.Equal(t, "st4te", location.Query().Get("state"))
	assert.Empty(t, location.Query().Get("code"))
	assert.Contains(t, env.events.types(), audit.EventTypeConsentDenied)
}

func TestConsentKeepsExactRedirectURI(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	cookie := env.login(t, env.fixture.Alice.ID)
	rawRedirect := "https://Client.example/cb/?tenant=A%2FB"
	form := env.consentForm(t, cookie, authorizeQuery(url.Values{"redirect_uri": {rawRedirect}}))
	form.Set("decision", "allow")
	form.Set("organization_id", strconv.Itoa(int(env.fixture.Acme.ID)))

	resp := env.postForm(t, cookie, "/oauth/authorize", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "Client.example", location.Host)
	assert.Equal(t, "/cb/", location.Path)
	assert.Equal(t, "A/B", location.Query().Get("tenant"))
	assert.Equal(t, "st4te", location.Query().Get("state"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)

	// Exchange still compares the normalized forms.
	token, err := env.grants.Exchange(context.Background(), auth.ExchangeRequest{
		Code:         code,
		RedirectURI:  "https://client.example/cb?tenant=A%2FB",
		CodeVerifier: "verifier-verifier-verifier-verifier-verifier",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
}

func TestAuthorizeRejectsOversizedClientIdentity(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	cookie := env.login(t, env.fixture.Alice.ID)
	long := strings.Repeat("x", 129)

	for _, field := range []string{"client_id", "client_name"} {
		t.Run(field, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, authorizeQuery(url.Values{field: {long}}), nil)
			req.AddCookie(cookie)
			resp := env.do(t, req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "invalid_request", decodeError(t, resp).Error)
		})
	}

	req := httptest.NewRequest(http.MethodGet, authorizeQuery(url.Values{"client_name": {strings.Repeat("é", 128)}}), nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusOK, env.do(t, req).StatusCode)
}

func TestConsentRejectsForgedSubmission(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	alice := env.login(t, env.fixture.Alice.ID)
	form := env.consentForm(t, alice, authorizeQuery(nil))
	form.Set("decision", "allow")
	form.Set("organization_id", "100")

	noCSRF := url.Values{"request": {form.Get("request")}, "decision": {"allow"}, "organization_id": {"100"}}
	resp := env.postForm(t, alice, "/oauth/authorize", noCSRF)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	tampered := url.Values{}
	for k, v := range form {
		tampered[k] = v
	}
	tampered.Set("request", form.Get("request")+"x")
	resp = env.postForm(t, alice, "/oauth/authorize", tampered)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// A consent request rendered for alice cannot be submitted by bob.
	bob := env.login(t, env.fixture.Bob.ID)
	bobForm := env.consentForm(t, bob, authorizeQuery(nil))
	bobForm.Set("request", form.Get("request"))
	bobForm.Set("decision", "allow")
	bobForm.Set("organization_id", "100")
	resp = env.postForm(t, bob, "/oauth/authorize", bobForm)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Picking an organization the user does not belong to is refused.
	form.Set("organization_id", strconv.Itoa(int(env.fixture.Globex.ID)))
	resp = env.postForm(t, alice, "/oauth/authorize", form)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "access_denied", decodeError(t, resp).Error)
}

func TestConsentSignerExpiry(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	signer := NewConsentSigner(testMasterKey, 10*time.Minute, func() time.Time { return now })
	request, err := signer.Sign(1, ConsentClaims{RedirectURI: testRedirectURI, CodeChallenge: "c"})
	require.NoError(t, err)

	claims, err := signer.Verify(request, 1)
	require.NoError(t, err)
	assert.Equal(t, testRedirectURI, claims.RedirectURI)

	_, err = signer.Verify(request, 2)
	assert.ErrorIs(t, err, ErrConsentInvalid)

	other := NewConsentSigner("another-key", 10*time.Minute, func() time.Time { return now })
	_, err = other.Verify(request, 1)
	assert.ErrorIs(t, err, ErrConsentInvalid)

	now = now.Add(11 * time.Minute)
	_, err = signer.Verify(request, 1)
	assert.ErrorIs(t, err, ErrConsentInvalid)
}

// TestAuthorizationCodeFlow drives the full PKCE flow with a stock OAuth2 client.
func TestAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	srv := httptest.NewServer(adaptor.FiberApp(env.app))
	defer srv.Close()

	conf := &oauth2.Config{
		ClientID:    "client-1",
		RedirectURL: testRedirectURI,
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/oauth/authorize",
			TokenURL:  srv.URL + "/oauth/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	verifier := oauth2.GenerateVerifier()
	authURL, err := url.Parse(conf.AuthCodeURL("st4te",
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("client_name", "Claude"),
	))
	require.NoError(t, err)

	cookie := env.login(t, env.fixture.Alice.ID)
	form := env.consentForm(t, cookie, authURL.RequestURI())
	form.Set("decision", "allow")
	form.Set("organization_id", strconv.Itoa(int(env.fixture.Acme.ID)))
	resp := env.postForm(t, cookie, "/oauth/authorize", form)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	callback, err := url.Parse(resp.Header.Get(fiber.HeaderLocation))
	require.NoError(t, err)
	assert.Equal(t, "st4te", callback.Query().Get("state"))
	code := callback.Query().Get("code")
	require.NotEmpty(t, code)

	ctx := context.Background()
	_, err = conf.Exchange(ctx, code, oauth2.VerifierOption("not-the-verifier-not-the-verifier-not-the"))
	require.Error(t, err, "a wrong verifier must not redeem the code")

	// The failed attempt spent the code; run the consent again.
	form = env.consentForm(t, cookie, authURL.RequestURI())
	form.Set("decision", "allow")
	form.Set("organization_id", strconv.Itoa(int(env.fixture.Acme.ID)))
	resp = env.postForm(t, cookie, "/oauth/authorize", form)
	callback, _ = url.Parse(resp.Header.Get(fiber.HeaderLocation))
	code = callback.Query().Get("code")

	token, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.NotEmpty(t, token.RefreshToken)

	result, err := env.validator.Validate(ctx, token.AccessToken)
	require.NoError(t, err)
	require.True(t, result.Valid)
	assert.Equal(t, env.fixture.Alice.ID, result.Principal.User.ID)
	assert.Equal(t, env.fixture.Acme.ID, result.Principal.Organization.ID)

	_, err = conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	assert.Error(t, err, "codes are single use")

	refreshed, err := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: token.RefreshToken}).Token()
	require.NoError(t, err)
	assert.NotEqual(t, token.AccessToken, refreshed.AccessToken)
	assert.Equal(t, token.RefreshToken, refreshed.RefreshToken)

	result, err = env.validator.Validate(ctx, refreshed.AccessToken)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestTokenEndpointErrors(t *testing.T) {
	env := newTestEnv(t, envConfig{})

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing grant type", url.Values{}, "invalid_request"},
		{"unsupported grant type", url.Values{"grant_type": {"password"}}, "unsupported_grant_type"},
		{"missing code", url.Values{"grant_type": {"authorization_code"}}, "invalid_request"},
		{"unknown code", url.Values{"grant_type": {"authorization_code"}, "code": {"nope"}, "redirect_uri": {testRedirectURI}}, "invalid_grant"},
		{"unknown refresh token", url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"nope"}}, "invalid_grant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.postForm(t, nil, "/oauth/token", tt.form)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "no-store", resp.Header.Get(fiber.HeaderCacheControl))
			assert.Equal(t, tt.want, decodeError(t, resp).Error)
		})
	}
}

func TestTokenEndpointAcceptsJSON(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	code, err := env.grants.IssueCode(context.Background(), auth.CodeRequest{
		UserID:         env.fixture.Bob.ID,
		OrganizationID: env.fixture.Acme.ID,
		RedirectURI:    testRedirectURI,
	})
	require.NoError(t, err)

	body := `{"grant_type":"authorization_code","code":"` + code + `","redirect_uri":"` + testRedirectURI + `"}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var token auth.TokenResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&token))
	assert.NotEmpty(t, token.AccessToken)
	assert.NotEmpty(t, token.RefreshToken)
	assert.Equal(t, int64(3600), token.ExpiresIn)
}

func TestTokenEndpointRateLimited(t *testing.T) {
	env := newTestEnv(t, envConfig{tokenMax: 2})
	form := url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"nope"}}

	for i := 0; i < 2; i++ {
		resp := env.postForm(t, nil, "/oauth/token", form)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
	resp := env.postForm(t, nil, "/oauth/token", form)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	body := decodeError(t, resp)
	assert.Equal(t, "rate_limit_exceeded", body.Error)
	assert.Positive(t, body.RetryAfter)
}

func TestListAndRevokeAuthorizations(t *testing.T) {
	env := newTestEnv(t, envConfig{})
	ctx := context.Background()
	connect := func(userID uint) *auth.TokenResponse {
		code, err := env.grants.IssueCode(ctx, auth.CodeRequest{
			UserID:         userID,
			OrganizationID: env.fixture.Acme.ID,
			ClientName:     "Claude",
			RedirectURI:    testRedirectURI,
		})
		require.NoError(t, err)
		token, err := env.grants.Exchange(ctx, auth.ExchangeRequest{Code: code, RedirectURI: testRedirectURI})
		require.NoError(t, err)
		return token
	}
	aliceToken := connect(env.fixture.Alice.ID)
	bobToken := connect(env.fixture.Bob.ID)

	cookie := env.login(t, env.fixture.Alice.ID)
	req := httptest.NewRequest(http.MethodGet, "/oauth/authorizations", nil)
	req.AddCookie(cookie)
	resp := env.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// Snowflake ids exceed the 2^53 range of JSON numbers in JS clients.
	assert.Contains(t, string(raw), `"id":"`+strconv.FormatUint(uint64(aliceToken.AuthorizationID), 10)+`"`)
	var list authorizationList
	require.NoError(t, json.Unmarshal(raw, &list))
	require.Len(t, list.Authorizations, 1)
	assert.Equal(t, "Claude", list.Authorizations[0].ClientName)
	assert.Equal(t, aliceToken.AuthorizationID, list.Authorizations[0].ID)

	target := "/oauth/authorizations/" + strconv.FormatUint(uint64(list.Authorizations[0].ID), 10) + "/revoke"
	resp = env.postForm(t, cookie, target, url.Values{})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Bob's authorization is invisible to alice.
	other := "/oauth/authorizations/" + strconv.FormatUint(uint64(bobToken.AuthorizationID), 10) + "/revoke"
	resp = env.postForm(t, cookie, other, url.Values{"_csrf": {list.CSRFToken}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.postForm(t, cookie, target, url.Values{"_csrf": {list.CSRFToken}})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	result, err := env.validator.Validate(ctx, aliceToken.AccessToken)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	result, err = env.validator.Validate(ctx, bobToken.AccessToken)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestMetadata(t *testing.T) {
	env := newTestEnv(t, envConfig{})

	resp := env.do(t, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var server ServerMetadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&server))
	assert.Equal(t, "https://auth.example", server.Issuer)
	assert.Equal(t, "https://auth.example/oauth/token", server.TokenEndpoint)
	assert.Contains(t, server.CodeChallengeMethodsSupported, "S256")

	resp = env.do(t, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resource ResourceMetadata
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&resource))
	assert.Equal(t, "https://auth.example/mcp", resource.Resource)
	assert.Equal(t, []string{"https://auth.example"}, resource.AuthorizationServers)
}
