package service

import (
	"context"
	"sync"
	"testing"

	"github.com/prperemyshlev/identity-gateway/internal/domain"
	"github.com/prperemyshlev/identity-gateway/internal/repository/repotest"
	"github.com/prperemyshlev/identity-gateway/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLinker(store *repotest.Store) *IdentityLinker {
	repos := store.Repositories()
	return NewIdentityLinker(repos.Account, repos.Profile, zap.NewNop())
}

func TestIdentityLinker_CreatesAccountWithPlaceholderPassword(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	linker := newTestLinker(store)

	account, profile, err := linker.Resolve(ctx, domain.ExternalIdentity{
		SubjectID: "sub-1",
		Email:     "New@X.com",
		FullName:  strPtr("New User"),
		Provider:  domain.ProviderSupabase,
	})
	require.NoError(t, err)

	assert.Equal(t, "new@x.com", account.Email)
	require.NotNil(t, account.ExternalSubjectID)
	assert.Equal(t, "sub-1", *account.ExternalSubjectID)
	assert.False(t, utils.CheckPasswordHash("", account.PasswordHash))

	assert.Equal(t, account.ID, profile.ID)
	assert.Equal(t, domain.PlatformRoleRep, profile.PlatformRole)
	require.NotNil(t, profile.FullName)
	assert.Equal(t, "New User", *profile.FullName)
}

func TestIdentityLinker_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	linker := newTestLinker(store)
	identity := domain.ExternalIdentity{SubjectID: "sub-1", Email: "a@x.com", Provider: domain.ProviderSupabase}

	first, _, err := linker.Resolve(ctx, identity)
	require.NoError(t, err)
	second, _, err := linker.Resolve(ctx, identity)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, store.AccountCount())
}

func TestIdentityLinker_LinksExistingLocalAccount(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	creds := newTestCredentials(t, store)
	linker := newTestLinker(store)

	local, err := creds.CreateLocalAccount(ctx, "a@x.com", "local-password")
	require.NoError(t, err)

	account, profile, err := linker.Resolve(ctx, domain.ExternalIdentity{
		SubjectID: "google-sub",
		Email:     "A@X.com",
		AvatarURL: strPtr("https://img/a.png"),
		Provider:  domain.ProviderGoogle,
	})
	require.NoError(t, err)

	assert.Equal(t, local.ID, account.ID)
	require.NotNil(t, account.ExternalSubjectID)
	assert.Equal(t, "google-sub", *account.ExternalSubjectID)
	require.NotNil(t, profile.Provider)
	assert.Equal(t, domain.ProviderGoogle, *profile.Provider)

	_, err = creds.AuthenticateLocal(ctx, "a@x.com", "local-password")
	assert.NoError(t, err, "linking must keep the local password usable")
	assert.Equal(t, 1, store.AccountCount())
}

func TestIdentityLinker_ProfileReflectsLatestLogin(t *testing.T) {
	ctx := context.Background()
	linker := newTestLinker(repotest.New())

	_, _, err := linker.Resolve(ctx, domain.ExternalIdentity{
		SubjectID: "sub-1", Email: "a@x.com", FullName: strPtr("Old Name"), Provider: domain.ProviderGoogle,
	})
	require.NoError(t, err)

	_, profile, err := linker.Resolve(ctx, domain.ExternalIdentity{
		SubjectID: "sub-1", Email: "a@x.com", FullName: strPtr("New Name"), Provider: domain.ProviderGoogle,
	})
	require.NoError(t, err)
	assert.Equal(t, "New Name", *profile.FullName)
}

func TestIdentityLinker_ResolveGoogleRemovesLegacyProfile(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	linker := newTestLinker(store)

	store.PutProfile(domain.Profile{ID: "google-sub", Email: "a@x.com", PlatformRole: domain.PlatformRoleRep, Active: true})

	account, _, err := linker.ResolveGoogle(ctx, domain.ExternalIdentity{
		SubjectID: "google-sub", Email: "a@x.com", Provider: domain.ProviderGoogle,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{account.ID}, store.ProfileIDs())
}

func TestIdentityLinker_ConcurrentFirstLogin(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	linker := newTestLinker(store)
	identity := domain.ExternalIdentity{SubjectID: "sub-1", Email: "a@x.com", Provider: domain.ProviderSupabase}

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			account, _, err := linker.Resolve(ctx, identity)
			if assert.NoError(t, err) {
				ids[i] = account.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	assert.Equal(t, 1, store.AccountCount())
}

func TestIdentityLinker_RejectsIncompleteIdentity(t *testing.T) {
	_, _, err := newTestLinker(repotest.New()).Resolve(context.Background(), domain.ExternalIdentity{SubjectID: "sub-1"})
	assert.Equal(t, KindValidation, KindOf(err))
}
