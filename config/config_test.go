package config

import (
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cdwhistler/netscan/plugins"
	"github.com/cdwhistler/netscan/targets"
	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKV struct {
	pairs map[string][]byte
	err   error
}

func (f *fakeKV) Get(key string, _ *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	v, ok := f.pairs[key]
	if !ok {
		return nil, &api.QueryMeta{}, nil
	}
	return &api.KVPair{Key: key, Value: v}, &api.QueryMeta{}, nil
}

const localYAML = `
interface: eth1
refresh:
  window: 2s
  min_interval: 10
probe:
  workers: 8
  range_start: 10.0.0.10
  range_end: 10.0.0.20
logging:
  level: debug
plugins:
  - name: file
    args: ["/tmp/devices"]
  - name: http
    args: ["127.0.0.1:8080"]
`

func TestDefaults(t *testing.T) {
	m := NewConfigManager(nil, t.TempDir(), DefaultConsulKey)
	c, err := m.Load()
	require.NoError(t, err)

	assert.Equal(t, "br0", c.Interface)
	assert.Equal(t, 3*time.Second, c.Refresh.Window)
	assert.Equal(t, 8*time.Second, c.Refresh.MinInterval)
	assert.Equal(t, 5*time.Second, c.Render.Interval)
	assert.Equal(t, time.Millisecond, c.Probe.Pace)
	assert.Equal(t, 100, c.Reap.Max)
	assert.Equal(t, 4, c.Probe.Workers)
	assert.True(t, c.Probe.Subnet)
	assert.Equal(t, "0.0.0.0", c.NBNS.Bind)
	assert.Equal(t, 137, c.NBNS.Port)
	assert.Equal(t, "info", c.Logging.LogLevel)
	assert.Empty(t, c.Plugins)
}

func TestLocalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(localYAML), 0644))

	c, err := NewConfigManager(nil, dir, DefaultConsulKey).Load()
	require.NoError(t, err)
	assert.Equal(t, "eth1", c.Interface)
	assert.Equal(t, 2*time.Second, c.Refresh.Window)
	assert.Equal(t, 10*time.Second, c.Refresh.MinInterval)
	assert.Equal(t, 8, c.Probe.Workers)
	assert.Equal(t, "debug", c.Logging.LogLevel)
	assert.Equal(t, []plugins.Config{
		{Name: "file", Args: []string{"/tmp/devices"}},
		{Name: "http", Args: []string{"127.0.0.1:8080"}},
	}, c.Plugins)

	sc, err := c.Scheduler(targets.Range{})
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.10"), sc.Range.Start)
	assert.Equal(t, 11, sc.Range.Size())
	assert.Equal(t, 2*time.Second, sc.Window)
}

func TestExplicitRangeIsProbed(t *testing.T) {
	dir := t.TempDir()
	doc := "probe:\n  subnet: false\n  range_start: 10.0.0.10\n  range_end: 10.0.0.20\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0644))
	c, err := NewConfigManager(nil, dir, DefaultConsulKey).Load()
	require.NoError(t, err)
	require.False(t, c.Probe.Subnet)

	sc, err := c.Scheduler(targets.Range{})
	require.NoError(t, err)
	assert.True(t, sc.ProbeSubnet)
	assert.Equal(t, 11, sc.Range.Size())

	subnet, err := targets.FromPrefix(netip.MustParsePrefix("192.168.1.0/24"))
	require.NoError(t, err)
	c.Probe.RangeStart, c.Probe.RangeEnd = "", ""
	sc, err = c.Scheduler(subnet)
	require.NoError(t, err)
	assert.False(t, sc.ProbeSubnet, "the interface subnet follows probe.subnet")
}

func TestRemoteOverridesLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(localYAML), 0644))
	kv := &fakeKV{pairs: map[string][]byte{
		DefaultConsulKey: []byte(`{"interface": "eth2", "refresh": {"min_interval": "20s"}}`),
	}}

	c, err := NewConfigManager(kv, dir, DefaultConsulKey).Load()
	require.NoError(t, err)
	assert.Equal(t, "eth2", c.Interface)
	assert.Equal(t, 20*time.Second, c.Refresh.MinInterval)
	assert.Equal(t, 2*time.Second, c.Refresh.Window)
	assert.Equal(t, 8, c.Probe.Workers)

	_, err = os.Stat(filepath.Join(dir, "config.json"))
	assert.NoError(t, err, "merged config is written back")
}

func TestRemoteMissingKey(t *testing.T) {
	c, err := NewConfigManager(&fakeKV{}, t.TempDir(), DefaultConsulKey).Load()
	require.NoError(t, err)
	assert.Equal(t, "br0", c.Interface)
}

func TestRemoteError(t *testing.T) {
	_, err := NewConfigManager(&fakeKV{err: errors.New("unreachable")}, t.TempDir(), DefaultConsulKey).Load()
	assert.Error(t, err)
}

func TestDecodeRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"bad duration": "refresh:\n  window: soon\n",
		"zero window":  "refresh:\n  window: 0\n",
		"half a range": "probe:\n  range_start: 10.0.0.1\n",
	} {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(doc), 0644))
		_, err := NewConfigManager(nil, dir, DefaultConsulKey).Load()
		assert.Error(t, err, name)
	}
}

func TestToDuration(t *testing.T) {
	for in, want := range map[interface{}]time.Duration{
		"1500ms": 1500 * time.Millisecond,
		3:        3 * time.Second,
		0.5:      500 * time.Millisecond,
		"4":      4 * time.Second,
	} {
		got, err := toDuration(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "%v", in)
	}
}
