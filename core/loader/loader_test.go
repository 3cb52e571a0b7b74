package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPlugin struct {
	mock.Mock
	name string
}

func (m *mockPlugin) Name() string { return m.name }

func (m *mockPlugin) Load(host Host) error {
	return m.Called(host).Error(0)
}

func (m *mockPlugin) Run(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestManager_Enable(t *testing.T) {
	m := NewManager()
	m.Register(&mockPlugin{name: "metrics"})

	require.NoError(t, m.Enable([]string{"metrics"}))
	assert.Equal(t, []string{"metrics"}, m.Enabled())

	err := m.Enable([]string{"metrics", "stats"})
	assert.ErrorIs(t, err, ErrUnknownPlugin)
}

func TestManager_LoadAll(t *testing.T) {
	ok := &mockPlugin{name: "metrics"}
	ok.On("Load", mock.AnythingOfType("loader.Host")).Return(nil)

	m := NewManager()
	m.Register(ok)
	require.NoError(t, m.Enable([]string{"metrics"}))
	require.NoError(t, m.LoadAll(Host{Logger: zap.NewNop()}))
	ok.AssertExpectations(t)

	bad := &mockPlugin{name: "broken"}
	bad.On("Load", mock.Anything).Return(errors.New("address in use"))
	m.Register(bad)
	require.NoError(t, m.Enable([]string{"broken"}))

	err := m.LoadAll(Host{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestManager_Run(t *testing.T) {
	t.Run("NoPlugins", func(t *testing.T) {
		assert.NoError(t, NewManager().Run(context.Background()))
	})

	t.Run("PropagatesFailure", func(t *testing.T) {
		a := &mockPlugin{name: "a"}
		a.On("Run", mock.Anything).Return(nil)
		b := &mockPlugin{name: "b"}
		b.On("Run", mock.Anything).Return(errors.New("listener closed"))

		m := NewManager()
		m.Register(a)
		m.Register(b)
		require.NoError(t, m.Enable([]string{"a", "b"}))

		err := m.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "plugin b")
		a.AssertExpectations(t)
	})
}
