package config

import (
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestBuiltinConfig(t *testing.T) {
	rawConfig := make(map[string]interface{})
	assert.Nil(t, yaml.Unmarshal(defaultConfigData, &rawConfig))

	knownFields := make(map[string]bool)
	rt := reflect.TypeOf(Configuration{})
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		assert.NotEmpty(t, jsonTag)
		jsonField := strings.Split(jsonTag, ",")[0]
		knownFields[jsonField] = true

		if _, ok := rawConfig[jsonField]; !ok {
			assert.False(t, true, "default config missing field: %q", jsonField)
		}
	}

	for k := range rawConfig {
		_, ok := knownFields[k]
		assert.True(t, ok, "default config contains invalid field: %q", k)
	}
}

func TestDefaultConfig(t *testing.T) {
	// Will panic() on load failure because it should never happen at runtime.
	cfg := Default()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "posix", cfg.Lang)
	assert.Equal(t, "+ ", cfg.Prompts.PS4)
	assert.Contains(t, cfg.Files, "/tmp/")
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Configuration)
		wantErr string
	}{
		"default": {
			mutate: func(*Configuration) {},
		},
		"bash": {
			mutate: func(c *Configuration) { c.Lang = "bash" },
		},
		"unknown lang": {
			mutate:  func(c *Configuration) { c.Lang = "zsh" },
			wantErr: "'lang' failed on the 'oneof' tag",
		},
		"unknown option": {
			mutate:  func(c *Configuration) { c.Options = []string{"errexit", "bogus"} },
			wantErr: "'oneof' tag",
		},
		"duplicate option": {
			mutate:  func(c *Configuration) { c.Options = []string{"errexit", "errexit"} },
			wantErr: "'unique' tag",
		},
		"missing path": {
			mutate:  func(c *Configuration) { c.Path = "" },
			wantErr: "'path' failed on the 'required' tag",
		},
		"relative home": {
			mutate:  func(c *Configuration) { c.User.Home = "home" },
			wantErr: "'startswith' tag",
		},
		"relative file": {
			mutate:  func(c *Configuration) { c.Files = map[string]string{"etc/passwd": ""} },
			wantErr: "'startswith' tag",
		},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
