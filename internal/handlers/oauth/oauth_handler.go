package oauth

import (
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/mcpauth/internal/audit"
	"github.com/khanghh/mcpauth/internal/auth"
	"github.com/khanghh/mcpauth/internal/middlewares/csrf"
	"github.com/khanghh/mcpauth/internal/middlewares/sessions"
	"github.com/khanghh/mcpauth/internal/users"
)

const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"
	responseTypeCode           = "code"
	decisionAllow              = "allow"
	decisionDeny               = "deny"
)

type OAuthHandler struct {
	grantService GrantService
	userService  UserService
	signer       *ConsentSigner
	recorder     audit.Recorder
	loginURL     string
}

type tokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type"`
	Code         string `form:"code" json:"code"`
	RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
	CodeVerifier string `form:"code_verifier" json:"code_verifier"`
	ClientID     string `form:"client_id" json:"client_id"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

func invalidRequest(description string) error {
	return &auth.OAuthError{Code: auth.ErrCodeInvalidRequest, Description: description}
}

// loginRequired sends an anonymous user to the application's login page, or
// answers 401 when no login page is configured.
func (h *OAuthHandler) loginRequired(ctx *fiber.Ctx) error {
	if h.loginURL != "" {
		return redirect(ctx, h.loginURL, "next", ctx.OriginalURL())
	}
	return fiber.NewError(fiber.StatusUnauthorized, "login required")
}

// GetAuthorize validates the client's authorization request and renders the
// consent page. Invalid requests are answered with JSON and never redirected.
func (h *OAuthHandler) GetAuthorize(ctx *fiber.Ctx) error {
	// The code is bound to the redirect URI exactly as sent; the normalized
	// form is only used to validate it.
	redirectURI := ctx.Query("redirect_uri")
	if _, err := auth.NormalizeRedirectURI(redirectURI); err != nil {
		return invalidRequest(err.Error())
	}
	if rt := ctx.Query("response_type"); rt != "" && rt != responseTypeCode {
		return invalidRequest("response_type must be code")
	}
	method, err := auth.ValidateCodeChallenge(ctx.Query("code_challenge"), ctx.Query("code_challenge_method"))
	if err != nil {
		return invalidRequest(err.Error())
	}
	if err := auth.ValidateClientIdentity(ctx.Query("client_id"), ctx.Query("client_name")); err != nil {
		return invalidRequest(err.Error())
	}

	session := sessions.Get(ctx)
	if !session.IsLoggedIn() {
		return h.loginRequired(ctx)
	}
	user, err := h.userService.GetUserByID(ctx.UserContext(), session.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		return h.loginRequired(ctx)
	} else if err != nil {
		return err
	}
	orgs, err := h.userService.GetOrganizations(ctx.UserContext(), user.ID)
	if err != nil {
		return err
	}
	if len(orgs) == 0 {
		return &auth.OAuthError{Code: auth.ErrCodeAccessDenied, Description: "user does not belong to any organization"}
	}

	claims := ConsentClaims{
		ClientID:            ctx.Query("client_id"),
		ClientName:          ctx.Query("client_name"),
		RedirectURI:         redirectURI,
		State:               ctx.Query("state"),
		CodeChallenge:       ctx.Query("code_challenge"),
		CodeChallengeMethod: method,
	}
	request, err := h.signer.Sign(user.ID, claims)
	if err != nil {
		return err
	}

	clientName := claims.ClientName
	if clientName == "" {
		clientName = "An MCP client"
	}
	redirectHost := redirectURI
	if u, err := url.Parse(redirectURI); err == nil && u.Host != "" {
		redirectHost = strings.ToLower(u.Host)
	}
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Set(fiber.HeaderXFrameOptions, "DENY")
	return ctx.Render("authorize", fiber.Map{
		"clientName":    clientName,
		"redirectHost":  redirectHost,
		"username":      user.Username,
		"organizations": orgs,
		"request":       request,
		"csrfToken":     csrf.Get(session).Token,
	})
}

// PostAuthorize records the user's consent decision. A denial is reported to
// the client's redirect URI; an approval issues a code bound to the signed
// request and the chosen organization.
func (h *OAuthHandler) PostAuthorize(ctx *fiber.Ctx) error {
	session := sessions.Get(ctx)
	if !session.IsLoggedIn() {
		return fiber.NewError(fiber.StatusUnauthorized, "login required")
	}
	if !csrf.Verify(ctx) {
		return fiber.NewError(fiber.StatusForbidden, "invalid csrf token")
	}
	claims, err := h.signer.Verify(ctx.FormValue("request"), session.UserID)
	if err != nil {
		return invalidRequest(err.Error())
	}

	switch ctx.FormValue("decision") {
	case decisionDeny:
		h.recorder.Record(ctx.UserContext(), audit.Event{
			Type:       audit.EventTypeConsentDenied,
			UserID:     session.UserID,
			ClientName: claims.ClientName,
			IP:         ctx.IP(),
		})
		return redirect(ctx, claims.RedirectURI,
			"error", auth.ErrCodeAccessDenied,
			"error_description", "the user denied the request",
			"state", claims.State,
		)
	case decisionAllow:
	default:
		return invalidRequest("decision must be allow or deny")
	}

	orgID, err := strconv.ParseUint(ctx.FormValue("organization_id"), 10, 64)
	if err != nil || orgID == 0 {
		return invalidRequest("organization_id is required")
	}
	code, err := h.grantService.IssueCode(ctx.UserContext(), auth.CodeRequest{
		UserID:              session.UserID,
		OrganizationID:      uint(orgID),
		ClientID:            claims.ClientID,
		ClientName:          claims.ClientName,
		RedirectURI:         claims.RedirectURI,
		CodeChallenge:       claims.CodeChallenge,
		CodeChallengeMethod: claims.CodeChallengeMethod,
		IP:                  ctx.IP(),
	})
	if err != nil {
		return err
	}
	return redirect(ctx, claims.RedirectURI, "code", code, "state", claims.State)
}

// PostToken is the token endpoint. It accepts form or JSON bodies for the
// authorization_code and refresh_token grants.
func (h *OAuthHandler) PostToken(ctx *fiber.Ctx) error {
	ctx.Set(fiber.HeaderCacheControl, "no-store")
	ctx.Set(fiber.HeaderPragma, "no-cache")

	var req tokenRequest
	if err := ctx.BodyParser(&req); err != nil {
		return invalidRequest("malformed token request")
	}

	var (
		resp *auth.TokenResponse
		err  error
	)
	switch req.GrantType {
	case grantTypeAuthorizationCode:
		resp, err = h.grantService.Exchange(ctx.UserContext(), auth.ExchangeRequest{
			Code:         req.Code,
			RedirectURI:  req.RedirectURI,
			CodeVerifier: req.CodeVerifier,
			ClientID:     req.ClientID,
			IP:           ctx.IP(),
		})
	case grantTypeRefreshToken:
		resp, err = h.grantService.Refresh(ctx.UserContext(), req.RefreshToken, ctx.IP())
	case "":
		return invalidRequest("grant_type is required")
	default:
		return &auth.OAuthError{Code: auth.ErrCodeUnsupportedGrant, Description: "grant_type is not supported"}
	}
	if err != nil {
		if _, ok := auth.AsOAuthError(err); !ok {
			slog.Error("token request failed", "grant_type", req.GrantType, "error", err)
		}
		return err
	}
	return ctx.JSON(resp)
}

func NewOAuthHandler(grantService GrantService, userService UserService, signer *ConsentSigner, recorder audit.Recorder, loginURL string) *OAuthHandler {
	if recorder == nil {
		recorder = audit.Nop
	}
	return &OAuthHandler{
		grantService: grantService,
		userService:  userService,
		signer:       signer,
		recorder:     recorder,
		loginURL:     loginURL,
	}
}
