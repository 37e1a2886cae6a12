package main

import "time"

const (
	DateLayout = "2006-01-02"

	maskedPrefixLen = 10
	maskSuffix      = "..."
)

type Post struct {
	ID     int64   `json:"id"`
	UserID int64   `json:"user_id"`
	Note   string  `json:"note"`
	Image  *string `json:"image"`
}

type Account struct {
	ID           int64
	Name         string
	UID          string
	PasswordHash string `json:"-"`
	DOB          time.Time
	Posts        []Post
}

// MaskedPassword exposes only the leading bytes of the stored hash.
func (a Account) MaskedPassword() string {
	if len(a.PasswordHash) <= maskedPrefixLen {
		return maskSuffix
	}

	return a.PasswordHash[:maskedPrefixLen] + maskSuffix
}

func (a Account) IsPassword(password string) bool {
	return VerifyPassword(a.PasswordHash, password)
}

func (a Account) Age(today time.Time) int {
	return Age(a.DOB, today)
}

// Age counts whole years between dob and today. A birthday that has not
// been reached yet this year does not count.
func Age(dob, today time.Time) int {
	age := today.Year() - dob.Year()
	if today.Month() < dob.Month() || (today.Month() == dob.Month() && today.Day() < dob.Day()) {
		age--
	}

	return age
}

type NewPost struct {
	UserID int64
	Note   string
	Image  *string
}

type AccountView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	UID      string `json:"uid"`
	Password string `json:"password"`
	DOB      string `json:"dob"`
	Age      int    `json:"age"`
	Posts    []Post `json:"posts"`
}

func NewAccountView(a Account, today time.Time) AccountView {
	posts := a.Posts
	if posts == nil {
		posts = []Post{}
	}

	return AccountView{
		ID:       a.ID,
		Name:     a.Name,
		UID:      a.UID,
		Password: a.MaskedPassword(),
		DOB:      a.DOB.Format(DateLayout),
		Age:      a.Age(today),
		Posts:    posts,
	}
}

func truncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
