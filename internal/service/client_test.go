package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docportal/internal/apperr"
	"docportal/internal/model"
	"docportal/internal/realtime"
	repoMocks "docportal/internal/repository/mocks"
)

func TestClientService_ListClients(t *testing.T) {
	ctx := context.Background()
	firmID := "firm-1"

	tests := []struct {
		name       string
		viewer     *model.Identity
		setupMocks func(p *repoMocks.MockProfileRepository)
		wantLen    int
		wantErr    error
	}{
		{
			name:   "firm",
			viewer: firm,
			setupMocks: func(p *repoMocks.MockProfileRepository) {
				p.On("ListClients", ctx, "firm-1").Return([]model.Profile{
					{ID: "client-1", Role: model.RoleClient, FirmID: &firmID},
					{ID: "client-2", Role: model.RoleClient, FirmID: &firmID},
				}, nil)
			},
			wantLen: 2,
		},
		{
			name:   "firm without clients",
			viewer: firm,
			setupMocks: func(p *repoMocks.MockProfileRepository) {
				p.On("ListClients", ctx, "firm-1").Return(nil, nil)
			},
			wantLen: 0,
		},
		{name: "client", viewer: client, wantErr: apperr.ErrForbidden},
		{name: "anonymous", wantErr: apperr.ErrNotAuthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := new(repoMocks.MockProfileRepository)
			if tt.setupMocks != nil {
				tt.setupMocks(p)
			}
			svc := NewClientService(p, nil)

			got, err := svc.ListClients(ctx, tt.viewer)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.wantLen)
			p.AssertExpectations(t)
		})
	}
}

func TestClientService_WatchClients(t *testing.T) {
	hub := realtime.NewHub()
	defer hub.Close()
	svc := NewClientService(new(repoMocks.MockProfileRepository), hub)

	events := make(chan realtime.Event, 1)
	sub, err := svc.WatchClients(firm, func(ev realtime.Event) { events <- ev })
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(realtime.Event{Topic: realtime.ClientsTopic("firm-1"), Op: realtime.OpInsert, Subject: "client-3"})
	select {
	case ev := <-events:
		assert.Equal(t, "client-3", ev.Subject)
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
	}

	_, err = svc.WatchClients(client, func(realtime.Event) {})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}
