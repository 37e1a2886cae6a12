package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/exp/slog"
)

const seedImage = "ncs_logo.png"

type seedAccount struct {
	name     string
	uid      string
	password string
	dob      time.Time
}

var seedAccounts = []seedAccount{
	{name: "Thomas Edison", uid: "toby", password: "123toby", dob: time.Date(1847, 2, 11, 0, 0, 0, 0, time.UTC)},
	{name: "Nicholas Tesla", uid: "niko", password: "123niko", dob: time.Date(1856, 7, 10, 0, 0, 0, 0, time.UTC)},
	{name: "Alexander Graham Bell", uid: "lex", password: DefaultPassword},
	{name: "Grace Hopper", uid: "hop", password: "123hop", dob: time.Date(1906, 12, 9, 0, 0, 0, 0, time.UTC)},
}

type SeedResult struct {
	Accounts int
	Posts    int
	Skipped  []string
}

// Seed inserts the sample accounts, each with one to three generated posts.
// Every account is written in its own transaction; an account whose uid is
// already taken is rolled back and skipped, so running Seed again is a no-op.
func Seed(ctx context.Context, db *Database, hasher PasswordHasher, rng *rand.Rand, now time.Time) (SeedResult, error) {
	var res SeedResult

	for _, sa := range seedAccounts {
		account, err := NewAccount(hasher, sa.name, sa.uid, sa.password, sa.dob, now)
		if err != nil {
			return res, fmt.Errorf("seed: %s: %w", sa.uid, err)
		}

		n := 1 + rng.Intn(3)

		err = db.WithTx(ctx, func(q *Queries) error {
			created, err := q.CreateAccount(ctx, account)
			if err != nil {
				return err
			}

			for i := 0; i < n; i++ {
				image := seedImage
				if _, err := q.CreatePost(ctx, NewPost{
					UserID: created.ID,
					Note:   seedNote(sa.name, i),
					Image:  &image,
				}); err != nil {
					return err
				}
			}

			return nil
		})

		if errors.Is(err, ErrConflict) {
			slog.Warn("Records exist, duplicate uid, or error", "uid", sa.uid, "error", err)
			res.Skipped = append(res.Skipped, sa.uid)

			continue
		}

		if err != nil {
			return res, fmt.Errorf("seed: %s: %w", sa.uid, err)
		}

		res.Accounts++
		res.Posts += n
	}

	slog.Info("Seeded sample data", "accounts", res.Accounts, "posts", res.Posts, "skipped", len(res.Skipped))

	return res, nil
}

func seedNote(name string, n int) string {
	return fmt.Sprintf("#### %s note %d. \n Generated by test data.", name, n)
}
