package config

import (
	"io/ioutil"
	"log"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	configFs := afero.NewMemMapFs()
	cfg, err := Initialize(configFs, "/cfg", log.New(ioutil.Discard, "", 0))
	require.NoError(t, err)

	contents, err := afero.ReadFile(configFs, "/cfg/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, defaultConfigData, contents)
	assert.Equal(t, defaultConfig().Path, cfg.Path)

	t.Run("EventLog", func(t *testing.T) {
		cfg.EventLog = "events.jsonl"
		fd, err := cfg.OpenEventLog()
		require.NoError(t, err)
		fd.WriteString("{}\n")
		fd.Close()

		data, err := afero.ReadFile(configFs, "/cfg/events.jsonl")
		require.NoError(t, err)
		assert.Equal(t, "{}\n", string(data))

		rd, err := cfg.ReadEventLog()
		require.NoError(t, err)
		rd.Close()
	})

	t.Run("OpenRootFs", func(t *testing.T) {
		cfg.RootFs = "missing.tar"
		_, err := cfg.OpenRootFs()
		assert.Error(t, err)
	})
}

func TestInitialize_keepsExisting(t *testing.T) {
	configFs := afero.NewMemMapFs()
	custom := "path: /bin\noptions: [pipefail]\nlang: bash\nuser: {name: root, home: /root}\n"
	require.NoError(t, afero.WriteFile(configFs, "/cfg/config.yaml", []byte(custom), 0644))

	cfg, err := Initialize(configFs, "/cfg", log.New(ioutil.Discard, "", 0))
	require.NoError(t, err)
	assert.Equal(t, "/bin", cfg.Path)
	assert.Equal(t, []string{"pipefail"}, cfg.Options)
	assert.Equal(t, "root", cfg.User.Name)
}

func TestLoad(t *testing.T) {
	configFs := afero.NewMemMapFs()

	t.Run("missing", func(t *testing.T) {
		_, err := Load(configFs, "/nowhere")
		assert.Error(t, err)
	})

	t.Run("unknown field", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(configFs, "/strict/config.yaml", []byte("path: /bin\nssh_port: 22\nlang: posix\nuser: {name: a, home: /a}\n"), 0644))
		_, err := Load(configFs, "/strict")
		assert.Error(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(configFs, "/invalid/config.yaml", []byte("path: /bin\nlang: fish\nuser: {name: a, home: /a}\n"), 0644))
		_, err := Load(configFs, "/invalid/config.yaml")
		assert.Error(t, err)
	})
}
