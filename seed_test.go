package main

import (
	"context"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	now := date(2024, time.March, 1)

	res, err := Seed(ctx, db, testHasher, rand.New(rand.NewSource(1)), now)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Accounts)
	assert.Empty(t, res.Skipped)

	accounts, err := db.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 4)

	var total int
	for _, a := range accounts {
		posts, err := db.ListPostsByUser(ctx, a.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(posts), 1)
		assert.LessOrEqual(t, len(posts), 3)

		for i, p := range posts {
			assert.Equal(t, seedNote(a.Name, i), p.Note)
			require.NotNil(t, p.Image)
			assert.Equal(t, seedImage, *p.Image)
		}
		total += len(posts)
	}
	assert.Equal(t, res.Posts, total)

	toby, err := db.GetAccountByUID(ctx, "toby")
	require.NoError(t, err)
	assert.True(t, toby.IsPassword("123toby"))
	assert.Equal(t, 177, toby.Age(now))

	lex, err := db.GetAccountByUID(ctx, "lex")
	require.NoError(t, err)
	assert.True(t, lex.IsPassword(DefaultPassword))
	assert.Equal(t, now, lex.DOB)
	assert.True(t, strings.HasPrefix(seedNote(lex.Name, 0), "#### Alexander Graham Bell note 0."))
}

func TestSeed_IsIdempotent(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	first, err := Seed(ctx, db, testHasher, rand.New(rand.NewSource(1)), time.Now())
	require.NoError(t, err)

	second, err := Seed(ctx, db, testHasher, rand.New(rand.NewSource(2)), time.Now())
	require.NoError(t, err)
	assert.Zero(t, second.Accounts)
	assert.Zero(t, second.Posts)
	assert.ElementsMatch(t, []string{"toby", "niko", "lex", "hop"}, second.Skipped)

	n, err := db.CountPosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(first.Posts), n, "skipped accounts must not leave posts behind")
}

func TestSeed_SkipsOnlyConflictingAccounts(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	niko := createTestAccount(t, db, "niko")

	res, err := Seed(ctx, db, testHasher, rand.New(rand.NewSource(3)), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Accounts)
	assert.Equal(t, []string{"niko"}, res.Skipped)

	posts, err := db.ListPostsByUser(ctx, niko.ID)
	require.NoError(t, err)
	assert.Empty(t, posts)

	got, err := db.GetAccountByUID(ctx, "niko")
	require.NoError(t, err)
	assert.Equal(t, niko.Name, got.Name)
}
