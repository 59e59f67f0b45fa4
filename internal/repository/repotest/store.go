// Package repotest provides an in-memory implementation of the repository
// interfaces. It enforces the same uniqueness rules as the Postgres schema and
// is safe for concurrent use.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/repository"
)

type membershipKey struct {
	orgID  string
	userID string
}

// Store holds every table in memory
type Store struct {
	mu          sync.Mutex
	accounts    map[string]*domain.Account
	profiles    map[string]*domain.Profile
	memberships map[membershipKey]*domain.OrganizationMembership
	tokens      map[string]*domain.IntegrationToken
	invitations map[string]*domain.Invitation
}

// New creates an empty store
func New() *Store {
	return &Store{
		accounts:    make(map[string]*domain.Account),
		profiles:    make(map[string]*domain.Profile),
		memberships: make(map[membershipKey]*domain.OrganizationMembership),
		tokens:      make(map[string]*domain.IntegrationToken),
		invitations: make(map[string]*domain.Invitation),
	}
}

// Repositories returns repository implementations backed by the store
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Account:          &accounts{s},
		Profile:          &profiles{s},
		Membership:       &memberships{s},
		IntegrationToken: &tokens{s},
		Invitation:       &invitations{s},
	}
}

// PutProfile stores a profile as-is, overwriting any existing row
func (s *Store) PutProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = &p
}

// PutInvitation stores an invitation keyed by its token hash
func (s *Store) PutInvitation(inv domain.Invitation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	s.invitations[inv.TokenHash] = &inv
}

// AccountCount returns the number of stored accounts
func (s *Store) AccountCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

// ProfileIDs returns the ids of all stored profiles, sorted
func (s *Store) ProfileIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func notFound(what string) error {
	return fmt.Errorf("%s not found: %w", what, repository.ErrNotFound)
}

type accounts struct{ s *Store }

func (r *accounts) Create(_ context.Context, account *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return fmt.Errorf("failed to create account: %w", repository.ErrDuplicateEmail)
		}
		if account.ExternalSubjectID != nil && existing.ExternalSubjectID != nil &&
			*existing.ExternalSubjectID == *account.ExternalSubjectID {
			return fmt.Errorf("failed to create account: %w", repository.ErrDuplicateExternalID)
		}
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	stored := *account
	r.s.accounts[account.ID] = &stored
	return nil
}

func (r *accounts) find(match func(*domain.Account) bool, what string) (*domain.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, a := range r.s.accounts {
		if match(a) {
			found := *a
			return &found, nil
		}
	}
	return nil, notFound(what)
}

func (r *accounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return a.ID == id }, "account")
}

func (r *accounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool { return strings.EqualFold(a.Email, email) }, "account")
}

func (r *accounts) GetByExternalSubjectID(_ context.Context, externalSubjectID string) (*domain.Account, error) {
	return r.find(func(a *domain.Account) bool {
		return a.ExternalSubjectID != nil && *a.ExternalSubjectID == externalSubjectID
	}, "account")
}

func (r *accounts) LinkExternalSubject(_ context.Context, id, externalSubjectID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return notFound("account")
	}
	for otherID, other := range r.s.accounts {
		if otherID != id && other.ExternalSubjectID != nil && *other.ExternalSubjectID == externalSubjectID {
			return fmt.Errorf("failed to link external subject: %w", repository.ErrDuplicateExternalID)
		}
	}
	sub := externalSubjectID
	account.ExternalSubjectID = &sub
	return nil
}

func (r *accounts) UpdatePasswordHash(_ context.Context, id, passwordHash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	account, ok := r.s.accounts[id]
	if !ok {
		return notFound("account")
	}
	account.PasswordHash = passwordHash
	return nil
}

func (r *accounts) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.accounts[id]; !ok {
		return notFound("account")
	}
	delete(r.s.accounts, id)
	delete(r.s.profiles, id)
	delete(r.s.tokens, id)
	for key := range r.s.memberships {
		if key.userID == id {
			delete(r.s.memberships, key)
		}
	}
	return nil
}

type profiles struct{ s *Store }

func (r *profiles) Upsert(_ context.Context, update domain.ProfileUpdate) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[update.ID]
	if !ok {
		p = &domain.Profile{
			ID:           update.ID,
			PlatformRole: domain.PlatformRoleRep,
			Timezone:     domain.DefaultTimezone,
			Currency:     domain.DefaultCurrency,
			Active:       true,
		}
		r.s.profiles[update.ID] = p
	}

	p.Email = update.Email
	if update.FullName != nil {
		p.FullName = update.FullName
	}
	if update.AvatarURL != nil {
		p.AvatarURL = update.AvatarURL
	}
	if update.Provider != nil {
		p.Provider = update.Provider
	}

	result := *p
	return &result, nil
}

func (r *profiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return nil, notFound("profile")
	}
	result := *p
	return &result, nil
}

func (r *profiles) UpdatePlatformRole(_ context.Context, id string, role domain.PlatformRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return notFound("profile")
	}
	p.PlatformRole = role
	return nil
}

func (r *profiles) SetActive(_ context.Context, id string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.profiles[id]
	if !ok {
		return notFound("profile")
	}
	p.Active = active
	return nil
}

func (r *profiles) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.profiles, id)
	return nil
}

type memberships struct{ s *Store }

func (r *memberships) Get(_ context.Context, orgID, userID string) (*domain.OrganizationMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.memberships[membershipKey{orgID, userID}]
	if !ok {
		return nil, notFound("membership")
	}
	result := *m
	return &result, nil
}

func (r *memberships) ListByOrg(_ context.Context, orgID string) ([]*domain.OrganizationMembership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []*domain.OrganizationMembership
	for key, m := range r.s.memberships {
		if key.orgID == orgID {
			copied := *m
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].UserID < result[j].UserID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memberships) Upsert(_ context.Context, m *domain.OrganizationMembership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := membershipKey{m.OrgID, m.UserID}
	if existing, ok := r.s.memberships[key]; ok {
		existing.Role = m.Role
		return nil
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	stored := *m
	r.s.memberships[key] = &stored
	return nil
}

func (r *memberships) UpdateRole(_ context.Context, orgID, userID string, role domain.OrgRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.memberships[membershipKey{orgID, userID}]
	if !ok {
		return notFound("membership")
	}
	m.Role = role
	return nil
}

func (r *memberships) Delete(_ context.Context, orgID, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := membershipKey{orgID, userID}
	if _, ok := r.s.memberships[key]; !ok {
		return notFound("membership")
	}
	delete(r.s.memberships, key)
	return nil
}

type tokens struct{ s *Store }

func (r *tokens) Get(_ context.Context, userID string) (*domain.IntegrationToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.tokens[userID]
	if !ok {
		return nil, notFound("ringcentral token")
	}
	result := *t
	return &result, nil
}

func (r *tokens) Upsert(_ context.Context, t *domain.IntegrationToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t.UpdatedAt = time.Now()
	stored := *t
	r.s.tokens[t.UserID] = &stored
	return nil
}

func (r *tokens) Delete(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tokens[userID]; !ok {
		return notFound("ringcentral token")
	}
	delete(r.s.tokens, userID)
	return nil
}

type invitations struct{ s *Store }

func (r *invitations) GetByTokenHash(_ context.Context, tokenHash string) (*domain.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	inv, ok := r.s.invitations[tokenHash]
	if !ok {
		return nil, notFound("invitation")
	}
	result := *inv
	return &result, nil
}

func (r *invitations) MarkAccepted(_ context.Context, id string, acceptedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, inv := range r.s.invitations {
		if inv.ID == id && inv.AcceptedAt == nil {
			at := acceptedAt
			inv.AcceptedAt = &at
			return nil
		}
	}
	return notFound("pending invitation")
}
