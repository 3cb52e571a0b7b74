package mocks

import (
	"context"

	"prefork/core/supervisor"

	"github.com/stretchr/testify/mock"
)

// Controller is a mock implementation of supervisor.Controller
type Controller struct {
	mock.Mock
}

func (m *Controller) Stats() supervisor.Stats {
	args := m.Called()
	return args.Get(0).(supervisor.Stats)
}

func (m *Controller) GCStats() supervisor.GCStats {
	args := m.Called()
	return args.Get(0).(supervisor.GCStats)
}

func (m *Controller) Restart(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Controller) PhasedRestart(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Controller) Stop(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *Controller) Halt(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
