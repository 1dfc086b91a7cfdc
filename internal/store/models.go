package store

import (
	"errors"

	"autodoc/api/internal/docdata"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

type User struct {
	Username     string
	PasswordHash string
	Role         string
}

type Document struct {
	ID       int64          `json:"id"`
	FormName string         `json:"formName"`
	Data     docdata.Object `json:"data"`
}

// SearchHit is a full-text match over the document catalog.
type SearchHit struct {
	ID       int64
	FormName string
	Snippet  string
	Rank     float64
}
