package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/khanghh/mcpauth/internal/audit"
	"github.com/khanghh/mcpauth/internal/authcode"
	"github.com/khanghh/mcpauth/internal/common"
	"github.com/khanghh/mcpauth/internal/ratelimit"
	"github.com/khanghh/mcpauth/model"
	"github.com/khanghh/mcpauth/params"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type MembershipChecker interface {
	IsMember(ctx context.Context, userID uint, orgID uint) (bool, error)
}

// CodeRequest is a consented authorization request.
type CodeRequest struct {
	UserID              uint
	OrganizationID      uint
	ClientID            string
	ClientName          string
	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	IP                  string
}

type ExchangeRequest struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
	ClientID     string
	IP           string
}

type TokenResponse struct {
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token,omitempty"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int64  `json:"expires_in"`
	AuthorizationID uint   `json:"-"`
}

// GrantService drives a grant through its lifecycle: code issued, exchanged,
// refreshed any number of times, and finally revoked.
type GrantService struct {
	authRepo  AuthorizationRepository
	codeStore *authcode.Store
	limiter   *ratelimit.Limiter
	members   MembershipChecker
	options
}

func (s *GrantService) IssueCode(ctx context.Context, req CodeRequest) (string, error) {
	if _, err := NormalizeRedirectURI(req.RedirectURI); err != nil {
		return "", newOAuthError(ErrCodeInvalidRequest, err.Error())
	}
	method, err := ValidateCodeChallenge(req.CodeChallenge, req.CodeChallengeMethod)
	if err != nil {
		return "", newOAuthError(ErrCodeInvalidRequest, err.Error())
	}
	if err := ValidateClientIdentity(req.ClientID, req.ClientName); err != nil {
		return "", newOAuthError(ErrCodeInvalidRequest, err.Error())
	}
	if req.UserID == 0 || req.OrganizationID == 0 {
		return "", newOAuthError(ErrCodeInvalidRequest, "user and organization are required")
	}

	identity := ratelimit.Identity{Type: ratelimit.IdentityUser, Value: strconv.FormatUint(uint64(req.UserID), 10)}
	result, err := s.limiter.Check(ctx, identity, s.authorizePolicy)
	if err != nil {
		return "", fmt.Errorf("check authorize rate limit: %w", err)
	}
	if !result.Allowed {
		s.recorder.Record(ctx, audit.Event{
			Type:   audit.EventTypeRateLimited,
			UserID: req.UserID,
			IP:     req.IP,
			Reason: ratelimit.CategoryAuthorize,
		})
		return "", &OAuthError{
			Code:        ErrCodeRateLimitExceeded,
			Description: "too many authorization requests",
			RateLimit:   &result,
		}
	}

	member, err := s.members.IsMember(ctx, req.UserID, req.OrganizationID)
	if err != nil {
		return "", fmt.Errorf("check membership: %w", err)
	}
	if !member {
		return "", newOAuthError(ErrCodeAccessDenied, "user is not a member of the organization")
	}

	if req.ClientID == "" {
		req.ClientID = uuid.NewString()
	}
	if req.ClientName == "" {
		req.ClientName = params.DefaultClientName
	}
	code, err := s.codeStore.Create(ctx, authcode.Grant{
		UserID:              req.UserID,
		OrganizationID:      req.OrganizationID,
		ClientID:            req.ClientID,
		ClientName:          req.ClientName,
		RedirectURI:         req.RedirectURI,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: method,
	})
	if err != nil {
		return "", err
	}
	s.recorder.Record(ctx, audit.Event{
		Type:           audit.EventTypeCodeIssued,
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		ClientName:     req.ClientName,
		IP:             req.IP,
	})
	return code, nil
}

func (s *GrantService) exchangeFailed(ctx context.Context, req ExchangeRequest, grant *authcode.Grant, description string) error {
	event := audit.Event{
		Type:       audit.EventTypeExchangeFailed,
		IP:         req.IP,
		Credential: common.Redact(req.Code),
		Reason:     description,
	}
	if grant != nil {
		event.UserID = grant.UserID
		event.OrganizationID = grant.OrganizationID
		event.ClientName = grant.ClientName
	}
	s.recorder.Record(ctx, event)
	return newOAuthError(ErrCodeInvalidGrant, description)
}

// Exchange redeems an authorization code for a new Authorization with one
// access token and one refresh token. The code is spent even when a later
// check fails.
func (s *GrantService) Exchange(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	if req.Code == "" {
		return nil, newOAuthError(ErrCodeInvalidRequest, "code is required")
	}
	grant, ok := s.codeStore.Consume(ctx, req.Code)
	if !ok {
		return nil, s.exchangeFailed(ctx, req, nil, "authorization code is invalid or expired")
	}
	if !sameRedirectURI(grant.RedirectURI, req.RedirectURI) {
		return nil, s.exchangeFailed(ctx, req, grant, "redirect_uri does not match the authorization request")
	}
	if req.ClientID != "" && req.ClientID != grant.ClientID {
		return nil, s.exchangeFailed(ctx, req, grant, "client_id does not match the authorization request")
	}
	if !verifyPKCE(grant, req.CodeVerifier) {
		return nil, s.exchangeFailed(ctx, req, grant, "code_verifier does not match code_challenge")
	}

	var resp *TokenResponse
	err := s.authRepo.Transaction(ctx, func(repo AuthorizationRepository) error {
		now := s.now()
		authz := &model.Authorization{
			UserID:         grant.UserID,
			OrganizationID: grant.OrganizationID,
			ClientID:       grant.ClientID,
			ClientName:     grant.ClientName,
			Active:         true,
			CreatedAt:      now,
			LastUsedAt:     now,
		}
		if err := repo.CreateAuthorization(ctx, authz); err != nil {
			return err
		}
		var err error
		resp, err = s.mintTokens(ctx, repo, authz.ID, now, true)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("persist authorization: %w", err)
	}

	s.recorder.Record(ctx, audit.Event{
		Type:            audit.EventTypeTokenExchanged,
		UserID:          grant.UserID,
		OrganizationID:  grant.OrganizationID,
		AuthorizationID: resp.AuthorizationID,
		ClientName:      grant.ClientName,
		IP:              req.IP,
	})
	return resp, nil
}

func (s *GrantService) mintTokens(ctx context.Context, repo AuthorizationRepository, authzID uint, now time.Time, withRefresh bool) (*TokenResponse, error) {
	accessToken, err := common.GenerateToken()
	if err != nil {
		return nil, err
	}
	err = repo.CreateAccessToken(ctx, &model.AccessToken{
		TokenHash:       common.HashToken(accessToken),
		AuthorizationID: authzID,
		ExpiresAt:       now.Add(params.AccessTokenTTL),
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	resp := &TokenResponse{
		AccessToken:     accessToken,
		TokenType:       params.TokenTypeBearer,
		ExpiresIn:       int64(params.AccessTokenTTL / time.Second),
		AuthorizationID: authzID,
	}
	if !withRefresh {
		return resp, nil
	}

	refreshToken, err := common.GenerateToken()
	if err != nil {
		return nil, err
	}
	err = repo.CreateRefreshToken(ctx, &model.RefreshToken{
		TokenHash:       common.HashToken(refreshToken),
		AuthorizationID: authzID,
		ExpiresAt:       now.Add(params.RefreshTokenTTL),
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	resp.RefreshToken = refreshToken
	return resp, nil
}

// Refresh mints a new access token under the refresh token's Authorization.
// The presented refresh token stays valid until it expires or is revoked.
func (s *GrantService) Refresh(ctx context.Context, refreshToken string, ip string) (*TokenResponse, error) {
	if refreshToken == "" {
		return nil, newOAuthError(ErrCodeInvalidRequest, "refresh_token is required")
	}
	token, err := s.authRepo.FindRefreshToken(ctx, common.HashToken(refreshToken))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, s.refreshFailed(ctx, refreshToken, nil, ip, "refresh token is invalid")
	}
	if err != nil {
		return nil, fmt.Errorf("find refresh token: %w", err)
	}

	now := s.now()
	if token.Revoked || token.Authorization == nil || !token.Authorization.Active {
		return nil, s.refreshFailed(ctx, refreshToken, token.Authorization, ip, "refresh token has been revoked")
	}
	if !now.Before(token.ExpiresAt) {
		return nil, s.refreshFailed(ctx, refreshToken, token.Authorization, ip, "refresh token has expired")
	}

	var resp *TokenResponse
	err = s.authRepo.Transaction(ctx, func(repo AuthorizationRepository) error {
		var err error
		if resp, err = s.mintTokens(ctx, repo, token.AuthorizationID, now, false); err != nil {
			return err
		}
		return repo.TouchAuthorization(ctx, token.AuthorizationID, now)
	})
	if err != nil {
		return nil, fmt.Errorf("persist access token: %w", err)
	}

	authz := token.Authorization
	s.recorder.Record(ctx, audit.Event{
		Type:            audit.EventTypeTokenRefreshed,
		UserID:          authz.UserID,
		OrganizationID:  authz.OrganizationID,
		AuthorizationID: authz.ID,
		ClientName:      authz.ClientName,
		IP:              ip,
	})
	return resp, nil
}

func (s *GrantService) refreshFailed(ctx context.Context, refreshToken string, authz *model.Authorization, ip string, description string) error {
	event := audit.Event{
		Type:       audit.EventTypeRefreshFailed,
		IP:         ip,
		Credential: common.Redact(refreshToken),
		Reason:     description,
	}
	if authz != nil {
		event.UserID = authz.UserID
		event.OrganizationID = authz.OrganizationID
		event.AuthorizationID = authz.ID
	}
	s.recorder.Record(ctx, event)
	return newOAuthError(ErrCodeInvalidGrant, description)
}

// revoke deactivates the Authorization and revokes its refresh tokens in one
// transaction. It reports whether this call changed the Authorization.
func (s *GrantService) revoke(ctx context.Context, authzID uint) (*model.Authorization, bool, error) {
	var (
		authz   *model.Authorization
		changed bool
	)
	err := s.authRepo.Transaction(ctx, func(repo AuthorizationRepository) error {
		var err error
		authz, err = repo.FindAuthorization(ctx, authzID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return newOAuthError(ErrCodeNotFound, "authorization not found")
		}
		if err != nil {
			return err
		}
		n, err := repo.DeactivateAuthorization(ctx, authzID)
		if err != nil {
			return err
		}
		if _, err := repo.RevokeRefreshTokens(ctx, authzID, s.now()); err != nil {
			return err
		}
		changed = n > 0
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		s.recorder.Record(ctx, audit.Event{
			Type:            audit.EventTypeAuthorizationRevoked,
			UserID:          authz.UserID,
			OrganizationID:  authz.OrganizationID,
			AuthorizationID: authz.ID,
			ClientName:      authz.ClientName,
		})
	}
	return authz, changed, nil
}

// Revoke ends an Authorization. Revoking an already revoked Authorization is a no-op.
func (s *GrantService) Revoke(ctx context.Context, authzID uint) error {
	_, _, err := s.revoke(ctx, authzID)
	return err
}

// RevokeForUser revokes one of userID's own Authorizations. Authorizations of
// other users are reported as not found.
func (s *GrantService) RevokeForUser(ctx context.Context, userID uint, authzID uint) error {
	authz, err := s.authRepo.FindAuthorization(ctx, authzID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && authz.UserID != userID) {
		return newOAuthError(ErrCodeNotFound, "authorization not found")
	}
	if err != nil {
		return err
	}
	return s.Revoke(ctx, authzID)
}

// RevokeMembership revokes every active Authorization of userID in orgID, each
// in its own transaction, and returns how many were revoked.
func (s *GrantService) RevokeMembership(ctx context.Context, userID uint, orgID uint) (int, error) {
	authzs, err := s.authRepo.FindActiveAuthorizationsByOrg(ctx, userID, orgID)
	if err != nil {
		return 0, fmt.Errorf("find authorizations: %w", err)
	}

	// A failed Authorization must not stop the others, so the group carries no
	// shared context and failures are collected rather than returned.
	var (
		revoked atomic.Int64
		mu      sync.Mutex
		errs    []error
		g       errgroup.Group
	)
	g.SetLimit(params.RevocationConcurrency)
	for _, authz := range authzs {
		g.Go(func() error {
			_, changed, err := s.revoke(ctx, authz.ID)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("revoke authorization %d: %w", authz.ID, err))
				mu.Unlock()
				return nil
			}
			if changed {
				revoked.Add(1)
			}
			return nil
		})
	}
	g.Wait()
	err = errors.Join(errs...)

	count := int(revoked.Load())
	s.recorder.Record(ctx, audit.Event{
		Type:           audit.EventTypeMembershipRevoked,
		UserID:         userID,
		OrganizationID: orgID,
		Reason:         strconv.Itoa(count) + " authorizations revoked",
	})
	if err != nil {
		slog.Error("Cascading revocation incomplete", "userID", userID, "orgID", orgID, "revoked", count, "error", err)
		return count, err
	}
	return count, nil
}

// ListAuthorizations returns the user's active connected clients, newest first.
func (s *GrantService) ListAuthorizations(ctx context.Context, userID uint) ([]model.Authorization, error) {
	return s.authRepo.FindActiveAuthorizations(ctx, userID)
}

func NewGrantService(authRepo AuthorizationRepository, codeStore *authcode.Store, limiter *ratelimit.Limiter, members MembershipChecker, opts ...Option) *GrantService {
	return &GrantService{
		authRepo:  authRepo,
		codeStore: codeStore,
		limiter:   limiter,
		members:   members,
		options:   newOptions(opts),
	}
}
