package users

import (
	"context"
	"errors"
	"strings"

	"github.com/khanghh/mcpauth/model"
	"github.com/khanghh/mcpauth/params"
	"gorm.io/gorm"
)

// UserService answers directory questions about the surrounding app's users
// and organizations. It never writes; membership changes reach this server
// through the internal revocation hook.
type UserService struct {
	userRepo UserRepository
}

func (s *UserService) GetUserByID(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.FindUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (s *UserService) GetOrganizationByID(ctx context.Context, orgID uint) (*model.Organization, error) {
	org, err := s.userRepo.FindOrganization(ctx, orgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	return org, err
}

func (s *UserService) IsMember(ctx context.Context, userID uint, orgID uint) (bool, error) {
	_, err := s.userRepo.FindMembership(ctx, userID, orgID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *UserService) GetOrganizations(ctx context.Context, userID uint) ([]model.Organization, error) {
	memberships, err := s.userRepo.FindMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	orgs := make([]model.Organization, 0, len(memberships))
	for _, m := range memberships {
		if m.Organization != nil {
			orgs = append(orgs, *m.Organization)
		}
	}
	return orgs, nil
}

// SearchMembers returns users of orgID whose username, full name or email
// contains keyword. An empty keyword lists members alphabetically.
func (s *UserService) SearchMembers(ctx context.Context, orgID uint, keyword string, limit int) ([]model.User, error) {
	if limit <= 0 || limit > params.SearchUsersLimit {
		limit = params.SearchUsersLimit
	}
	memberships, err := s.userRepo.SearchMembers(ctx, orgID, strings.TrimSpace(keyword), limit)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(memberships))
	for _, m := range memberships {
		if m.User != nil {
			users = append(users, *m.User)
		}
	}
	return users, nil
}

func NewUserService(userRepo UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}
