package cmd

import (
	"fmt"

	"github.com/spf13/pflag"
)

// configKeyAnnotation marks a flag with the config key it overrides.
const configKeyAnnotation = "edgarfsn_config_key"

// bindFlags annotates each named flag in fs with its config key. The keys are
// bound to viper for the executing command only, in bindConfigFlags.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := fs.SetAnnotation(name, configKeyAnnotation, []string{key}); err != nil {
			panic(fmt.Sprintf("bind %s: %v", key, err))
		}
	}
}

// bindConfigFlags binds every annotated flag in fs so that an explicitly set
// flag overrides the config file and environment.
func bindConfigFlags(fs *pflag.FlagSet) error {
	var err error
	fs.VisitAll(func(f *pflag.Flag) {
		keys := f.Annotations[configKeyAnnotation]
		if len(keys) == 0 || err != nil {
			return
		}
		if bindErr := v.BindPFlag(keys[0], f); bindErr != nil {
			err = fmt.Errorf("bind --%s to %s: %w", f.Name, keys[0], bindErr)
		}
	})
	return err
}
