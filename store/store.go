// Package store implements the relational collaborators behind the assistant
// and the HTTP API: tasks, projects, settings and the conversation log.
package store

import (
	"gorm.io/gorm"
)

// Store wraps the gorm handle. All operations are individually atomic; no
// cross-call transaction is taken.
type Store struct {
	db *gorm.DB
}

// New store over an open gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}
