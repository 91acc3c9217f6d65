package services

import (
	"context"

	"github.com/AnshRaj112/connectpro-relay/internal/relay"
)

// StatsService aggregates counts across the stores for the admin surfaces
// (the /stats chat command and GET /api/admin/stats).
type StatsService struct {
	owners *OwnerService
	users  *EndUserService
	msgs   *MessageService
}

func NewStatsService(owners *OwnerService, users *EndUserService, msgs *MessageService) *StatsService {
	return &StatsService{owners: owners, users: users, msgs: msgs}
}

func (s *StatsService) Stats(ctx context.Context) (relay.Stats, error) {
	owners, err := s.owners.CountOwners(ctx)
	if err != nil {
		return relay.Stats{}, err
	}
	users, err := s.users.CountUsers(ctx)
	if err != nil {
		return relay.Stats{}, err
	}
	convos, err := s.msgs.CountConversations(ctx)
	if err != nil {
		return relay.Stats{}, err
	}
	return relay.Stats{Owners: owners, EndUsers: users, Conversations: convos}, nil
}
