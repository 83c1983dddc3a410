package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_GetOrCreateIsIdempotent(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "dana")

	missing, err := repo.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)

	first, err := repo.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.IsPublic)
	assert.True(t, second.AllowMessages)
	assert.False(t, second.ShowEmail)
}

func TestProfileRepository_SaveWritesFalse(t *testing.T) {
	db := setupSQLiteDB(t)
	repo := NewProfileRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "erin")
	p, err := repo.GetOrCreate(ctx, u.ID)
	require.NoError(t, err)

	p.IsPublic = false
	p.Headline = "Staff Engineer"
	require.NoError(t, repo.Save(ctx, p))

	got, err := repo.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPublic)
	assert.Equal(t, "Staff Engineer", got.Headline)
}

func TestUnitOfWork_RollsBack(t *testing.T) {
	db := setupSQLiteDB(t)
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	u := seedUser(t, db, "frank")
	boom := errors.New("boom")

	err := uow.Do(ctx, func(r Repositories) error {
		user, err := r.Users.GetByID(ctx, u.ID)
		if err != nil {
			return err
		}
		user.Bio = "changed"
		if err := r.Users.Update(ctx, user); err != nil {
			return err
		}
		if _, err := r.Profiles.GetOrCreate(ctx, u.ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	repos := NewRepositories(db)
	got, err := repos.Users.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Bio)

	p, err := repos.Profiles.GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestUnitOfWork_Commits(t *testing.T) {
	db := setupSQLiteDB(t)
	uow := NewUnitOfWork(db)
	ctx := context.Background()

	u := seedUser(t, db, "gina")

	err := uow.Do(ctx, func(r Repositories) error {
		p, err := r.Profiles.GetOrCreate(ctx, u.ID)
		if err != nil {
			return err
		}
		p.Industry = "Software"
		return r.Profiles.Save(ctx, p)
	})
	require.NoError(t, err)

	p, err := NewProfileRepository(db).GetByUserID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Software", p.Industry)
}
