package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Options carries every behavior switch. It is a plain value threaded
// through constructors; there is no process-wide configuration state.
type Options struct {
	// EnableDocumentScopeFail selects strict authorization: any scope
	// violation rejects the whole request instead of dropping or
	// redacting the offending documents.
	EnableDocumentScopeFail bool `mapstructure:"enable_document_scope_fail"`

	// EnableSoftDelete makes delete mark documents instead of removing
	// them; a hard-delete override in the payload still removes.
	EnableSoftDelete bool `mapstructure:"enable_soft_delete"`

	EnableCreatedAt bool `mapstructure:"enable_created_at"`
	EnableUpdatedAt bool `mapstructure:"enable_updated_at"`
	EnableDeletedAt bool `mapstructure:"enable_deleted_at"`
}

func Default() Options {
	return Options{
		EnableDocumentScopeFail: false,
		EnableSoftDelete:        true,
		EnableCreatedAt:         true,
		EnableUpdatedAt:         true,
		EnableDeletedAt:         false,
	}
}

// Load reads options from the named config file (any format viper
// understands), with REST_HAPI_* environment variables taking precedence.
// Missing file is not an error; defaults apply.
func Load(path string) (Options, error) {
	v := viper.New()

	opts := Default()
	v.SetDefault("enable_document_scope_fail", opts.EnableDocumentScopeFail)
	v.SetDefault("enable_soft_delete", opts.EnableSoftDelete)
	v.SetDefault("enable_created_at", opts.EnableCreatedAt)
	v.SetDefault("enable_updated_at", opts.EnableUpdatedAt)
	v.SetDefault("enable_deleted_at", opts.EnableDeletedAt)

	v.SetEnvPrefix("REST_HAPI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return opts, err
			}
		}
	}

	if err := v.Unmarshal(&opts); err != nil {
		return Default(), err
	}

	return opts, nil
}
