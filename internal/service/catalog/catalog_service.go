// Package catalog loads the reference sheets (items, users). Both are edited
// by hand outside this app, so lookups normalize identifiers and the loaded
// sets are memoized for a few minutes to spare the rate-limited backing store.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mvbarros/estoque/internal/domain/models"
	repo "github.com/mvbarros/estoque/internal/repository/sheets"
)

// ErrItemNotFound indicates the scanned identifier has no item row.
var ErrItemNotFound = errors.New("item not found")

// ErrUserNotFound indicates the login identifier has no user row.
var ErrUserNotFound = errors.New("user not found")

// ErrInvalidPIN indicates the supplied PIN did not match.
var ErrInvalidPIN = errors.New("invalid pin")

// ErrInactive indicates the matched record is flagged inactive.
var ErrInactive = errors.New("record is inactive")

// Service resolves items and users by normalized identifier.
type Service struct {
	repo       repo.Repository
	itemsSheet string
	usersSheet string
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu          sync.Mutex
	items       map[string]models.Item
	itemsLoaded time.Time
	users       map[string]models.User
	usersLoaded time.Time
}

// NewService constructs a catalog service.
func NewService(repository repo.Repository, itemsSheet, usersSheet string, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repository,
		itemsSheet: itemsSheet,
		usersSheet: usersSheet,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// FindItem resolves an item by identifier, case- and whitespace-insensitively.
// Inactive items resolve with ErrInactive so the caller can tell them apart
// from unknown identifiers.
func (s *Service) FindItem(ctx context.Context, itemID string) (models.Item, error) {
	items, err := s.loadItems(ctx)
	if err != nil {
		return models.Item{}, err
	}

	item, ok := items[models.NormalizeID(itemID)]
	if !ok {
		return models.Item{}, fmt.Errorf("%w: %q", ErrItemNotFound, itemID)
	}
	if !item.Active {
		return item, fmt.Errorf("%w: item %q", ErrInactive, item.ID)
	}
	return item, nil
}

// Authenticate matches a user by identifier and compares the PIN verbatim.
// The PIN is stored in clear in the sheet; this is the trust model of a
// closed internal tool, kept as-is.
func (s *Service) Authenticate(ctx context.Context, userID, pin string) (models.User, error) {
	users, err := s.loadUsers(ctx)
	if err != nil {
		return models.User{}, err
	}

	user, ok := users[models.NormalizeID(userID)]
	if !ok {
		return models.User{}, fmt.Errorf("%w: %q", ErrUserNotFound, userID)
	}
	if !user.Active {
		return models.User{}, fmt.Errorf("%w: user %q", ErrInactive, user.ID)
	}
	if user.PIN != pin {
		return models.User{}, ErrInvalidPIN
	}
	return user, nil
}

// Items returns the full active item set keyed by normalized identifier.
func (s *Service) Items(ctx context.Context) (map[string]models.Item, error) {
	return s.loadItems(ctx)
}

// Invalidate drops both caches so the next lookup rereads the sheets.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.users = nil
}

func (s *Service) loadItems(ctx context.Context) (map[string]models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.items != nil && s.now().Sub(s.itemsLoaded) < s.ttl {
		return s.items, nil
	}

	rows, err := s.repo.ReadRows(ctx, s.itemsSheet)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}

	items := make(map[string]models.Item, len(rows))
	for _, row := range rows {
		id := row.String("item_id")
		if id == "" {
			continue
		}
		items[models.NormalizeID(id)] = models.Item{
			ID:          id,
			Name:        row.String("name"),
			Unit:        row.String("unit"),
			Location:    row.String("location"),
			Category:    row.String("category"),
			MinStock:    row.FloatOr("min_stock", 0),
			TargetStock: row.FloatOr("target_stock", 0),
			Active:      activeFlag(row),
		}
	}

	s.items = items
	s.itemsLoaded = s.now()
	s.logger.Debug("items reloaded", zap.Int("count", len(items)))
	return items, nil
}

func (s *Service) loadUsers(ctx context.Context) (map[string]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.users != nil && s.now().Sub(s.usersLoaded) < s.ttl {
		return s.users, nil
	}

	rows, err := s.repo.ReadRows(ctx, s.usersSheet)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	users := make(map[string]models.User, len(rows))
	for _, row := range rows {
		id := row.String("user_id")
		if id == "" {
			continue
		}
		users[models.NormalizeID(id)] = models.User{
			ID:     id,
			Name:   row.String("name"),
			PIN:    row.String("pin"),
			Active: activeFlag(row),
			Role:   row.String("role"),
		}
	}

	s.users = users
	s.usersLoaded = s.now()
	s.logger.Debug("users reloaded", zap.Int("count", len(users)))
	return users, nil
}

// An absent or blank active column means active; only an explicit false-ish
// value deactivates a row.
func activeFlag(row repo.Record) bool {
	if !row.Has("active") {
		return true
	}
	return row.Bool("active")
}
