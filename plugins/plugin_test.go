package plugins

import (
	"errors"
	"testing"

	"github.com/cdwhistler/netscan/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	args   []string
	closed bool
}

func (s *recordingSink) Render([]device.Device) error { return nil }
func (s *recordingSink) Close() error                 { s.closed = true; return nil }

type nopController struct{}

func (nopController) Refresh()                  {}
func (nopController) Snapshot() []device.Device { return nil }

func TestRegisterAndLoad(t *testing.T) {
	var made []*recordingSink
	require.NoError(t, RegisterPlugin(&Plugin{
		Name: "recording",
		Setup: func(_ Controller, args ...string) (Sink, error) {
			s := &recordingSink{args: args}
			made = append(made, s)
			return s, nil
		},
	}))
	require.NoError(t, RegisterPlugin(&Plugin{
		Name: "broken",
		Setup: func(Controller, ...string) (Sink, error) {
			return nil, errors.New("no such file")
		},
	}))
	defer delete(RegisteredPlugins, "recording")
	defer delete(RegisteredPlugins, "broken")

	assert.Error(t, RegisterPlugin(&Plugin{Name: "recording", Setup: RegisteredPlugins["recording"].Setup}))
	assert.Error(t, RegisterPlugin(&Plugin{Name: "nosetup"}))

	sinks, err := LoadPlugins(nopController{}, []Config{{Name: "recording", Args: []string{"/tmp/x"}}})
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	assert.Equal(t, []string{"/tmp/x"}, made[0].args)

	_, err = LoadPlugins(nopController{}, []Config{{Name: "recording"}, {Name: "broken"}})
	assert.Error(t, err)
	assert.True(t, made[1].closed)

	_, err = LoadPlugins(nopController{}, []Config{{Name: "missing"}})
	assert.Error(t, err)
}
