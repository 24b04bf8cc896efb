package config

import (
	_ "embed"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

// Configuration holds the start-up settings of a shell session.
type Configuration struct {
	configFs afero.Fs

	Path    string   `json:"path" validate:"required"`
	Options []string `json:"options" validate:"unique,dive,oneof=allexport errexit monitor noclobber noexec noglob nounset pipefail verbose xtrace"`
	Lang    string   `json:"lang" validate:"oneof=posix bash"`

	Prompts Prompts `json:"prompts"`

	User User `json:"user"`

	Files map[string]string `json:"files" validate:"dive,keys,startswith=/,endkeys"`

	RootFs   string `json:"root_fs"`
	EventLog string `json:"event_log"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

type Prompts struct {
	PS1 string `json:"ps1"`
	PS2 string `json:"ps2"`
	PS4 string `json:"ps4"`
}

type User struct {
	Name string `json:"name" validate:"required"`
	Home string `json:"home" validate:"required,startswith=/"`
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// OpenEventLog opens the audit log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the audit log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

// OpenRootFs opens the filesystem image placed under the virtual system.
func (c *Configuration) OpenRootFs() (afero.File, error) {
	return c.fs().Open(c.RootFs)
}

// Default returns the built-in configuration. Relative paths in it resolve
// against the working directory.
func Default() *Configuration {
	out := defaultConfig()
	out.configFs = afero.NewOsFs()
	return out
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
