package services

import (
	"context"
	"fmt"

	"github.com/AnshRaj112/connectpro-relay/internal/database"
	"github.com/AnshRaj112/connectpro-relay/internal/models"
)

// EndUserService records end users lazily on first contact and keeps
// their display fields fresh on every later event.
type EndUserService struct{}

func NewEndUserService() *EndUserService { return &EndUserService{} }

func (s *EndUserService) Touch(ctx context.Context, identity int64, firstName, lastName, handle string) (*models.EndUser, error) {
	row := database.PostgresDB.QueryRowContext(ctx,
		`INSERT INTO end_users (identity, first_name, last_name, handle)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (identity) DO UPDATE SET
		   first_name = EXCLUDED.first_name,
		   last_name = EXCLUDED.last_name,
		   handle = EXCLUDED.handle
		 RETURNING id, identity, first_name, last_name, handle, created_at`,
		identity, firstName, lastName, handle)

	var u models.EndUser
	if err := row.Scan(&u.ID, &u.Identity, &u.FirstName, &u.LastName, &u.Handle, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("touch end user %d: %w", identity, err)
	}
	return &u, nil
}

func (s *EndUserService) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	err := database.PostgresDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM end_users`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count end users: %w", err)
	}
	return n, nil
}
