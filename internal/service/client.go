package service

import (
	"context"

	"docportal/internal/apperr"
	"docportal/internal/model"
	"docportal/internal/realtime"
	"docportal/internal/repository"
)

// ClientService lets a firm see the clients registered with its invite code.
type ClientService interface {
	// ListClients returns the firm's clients, oldest registration first.
	ListClients(ctx context.Context, viewer *model.Identity) ([]model.Profile, error)

	// WatchClients calls fn whenever a client links to the firm.
	WatchClients(viewer *model.Identity, fn func(realtime.Event)) (*realtime.Subscription, error)
}

type clientService struct {
	profiles repository.ProfileRepository
	events   realtime.Subscriber
}

// NewClientService constructs a ClientService.
func NewClientService(profiles repository.ProfileRepository, events realtime.Subscriber) ClientService {
	return &clientService{profiles: profiles, events: events}
}

func firmOnly(viewer *model.Identity) error {
	if viewer == nil {
		return apperr.ErrNotAuthenticated
	}
	if !viewer.IsFirm() {
		return apperr.ErrForbidden
	}
	return nil
}

func (s *clientService) ListClients(ctx context.Context, viewer *model.Identity) ([]model.Profile, error) {
	if err := firmOnly(viewer); err != nil {
		return nil, err
	}
	clients, err := s.profiles.ListClients(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	if clients == nil {
		clients = []model.Profile{}
	}
	return clients, nil
}

func (s *clientService) WatchClients(viewer *model.Identity, fn func(realtime.Event)) (*realtime.Subscription, error) {
	if err := firmOnly(viewer); err != nil {
		return nil, err
	}
	return s.events.Subscribe(realtime.ClientsTopic(viewer.ID), fn), nil
}
