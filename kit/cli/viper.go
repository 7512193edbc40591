package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Opt is a single command-line option
type Opt struct {
	DestP interface{} // pointer to the destination

	EnvVar     string
	Flag       string
	Hidden     bool
	Persistent bool
	Required   bool
	Short      rune // using rune b/c it guarantees correctness. a short must always be a string of length one

	Default interface{}
	Desc    string
}

// Program parses CLI options
type Program struct {
	// Run is invoked by cobra on execute.
	Run func() error
	// Name is the name of the program in help usage and the env var prefix.
	Name string
	// Opts are the command line/env var options to the program
	Opts []Opt
}

// NewCommand creates a new cobra command to be executed that respects env vars.
//
// Uses the upper-case version of the program's name as a prefix
// to all environment variables.
//
// This is to simplify the viper/cobra boilerplate.
func NewCommand(v *viper.Viper, p *Program) (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:  p.Name,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return p.Run()
		},
	}

	v.SetEnvPrefix(strings.ToUpper(p.Name))
	v.AutomaticEnv()
	// This normalizes "-" to an underscore in env names.
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// If <PROGRAM>_CONFIG_PATH is set, options are also read from that file.
	// Flags and env vars still take precedence.
	if configPath := os.Getenv(strings.ToUpper(p.Name) + "_CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}

	if err := BindOptions(v, cmd, p.Opts); err != nil {
		return nil, err
	}
	return cmd, nil
}

func setEnvKey(v *viper.Viper, o Opt) error {
	if o.EnvVar == "" {
		return nil
	}
	return v.BindEnv(o.Flag, o.EnvVar)
}

// BindOptions adds opts to the specified command and automatically
// registers those options with viper.
func BindOptions(v *viper.Viper, cmd *cobra.Command, opts []Opt) error {
	for _, o := range opts {
		flagset := cmd.Flags()
		if o.Persistent {
			flagset = cmd.PersistentFlags()
		}

		if err := setEnvKey(v, o); err != nil {
			return err
		}
		// a value from the environment or a config file satisfies a required option
		required := o.Required && !v.IsSet(o.Flag)

		switch destP := o.DestP.(type) {
		case *string:
			var d string
			if o.Default != nil {
				d = o.Default.(string)
			}
			if hasShort(o) {
				flagset.StringVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.StringVar(destP, o.Flag, d, o.Desc)
			}
			if err := bind(v, o, flagset); err != nil {
				return err
			}
			*destP = v.GetString(o.Flag)
		case *int:
			var d int
			if o.Default != nil {
				d = o.Default.(int)
			}
			if hasShort(o) {
				flagset.IntVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.IntVar(destP, o.Flag, d, o.Desc)
			}
			if err := bind(v, o, flagset); err != nil {
				return err
			}
			*destP = v.GetInt(o.Flag)
		case *bool:
			var d bool
			if o.Default != nil {
				d = o.Default.(bool)
			}
			if hasShort(o) {
				flagset.BoolVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.BoolVar(destP, o.Flag, d, o.Desc)
			}
			if err := bind(v, o, flagset); err != nil {
				return err
			}
			*destP = v.GetBool(o.Flag)
		case *time.Duration:
			var d time.Duration
			if o.Default != nil {
				d = o.Default.(time.Duration)
			}
			if hasShort(o) {
				flagset.DurationVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.DurationVar(destP, o.Flag, d, o.Desc)
			}
			if err := bind(v, o, flagset); err != nil {
				return err
			}
			*destP = v.GetDuration(o.Flag)
		case *[]string:
			var d []string
			if o.Default != nil {
				d = o.Default.([]string)
			}
			if hasShort(o) {
				flagset.StringSliceVarP(destP, o.Flag, string(o.Short), d, o.Desc)
			} else {
				flagset.StringSliceVar(destP, o.Flag, d, o.Desc)
			}
			if err := bind(v, o, flagset); err != nil {
				return err
			}
			*destP = v.GetStringSlice(o.Flag)
		case *zapcore.Level:
			var d zapcore.Level
			if o.Default != nil {
				d = o.Default.(zapcore.Level)
			}
			LevelVarP(flagset, destP, o.Flag, shorthand(o), d, o.Desc)
			if err := bind(v, o, flagset); err != nil {
				return err
			}
			if s := v.GetString(o.Flag); s != "" {
				if err := destP.Set(s); err != nil {
					return fmt.Errorf("option %s: %w", o.Flag, err)
				}
			}
		case pflag.Value:
			if hasShort(o) {
				flagset.VarP(destP, o.Flag, string(o.Short), o.Desc)
			} else {
				flagset.Var(destP, o.Flag, o.Desc)
			}
			if o.Default != nil {
				_ = destP.Set(o.Default.(string))
			}
			if err := bind(v, o, flagset); err != nil {
				return err
			}
			if s := v.GetString(o.Flag); s != "" {
				if err := destP.Set(s); err != nil {
					return fmt.Errorf("option %s: %w", o.Flag, err)
				}
			}
		default:
			// if you get this error, sorry about that!
			// anyway, go ahead and make a PR and add another type.
			return fmt.Errorf("unknown destination type %T", o.DestP)
		}

		if required {
			if err := cobra.MarkFlagRequired(flagset, o.Flag); err != nil {
				return err
			}
		}
		if o.Hidden {
			if err := flagset.MarkHidden(o.Flag); err != nil {
				return err
			}
		}
	}
	return nil
}

func hasShort(o Opt) bool {
	return o.Short != 0
}

func shorthand(o Opt) string {
	if !hasShort(o) {
		return ""
	}
	return string(o.Short)
}

func bind(v *viper.Viper, o Opt, flagset *pflag.FlagSet) error {
	return v.BindPFlag(o.Flag, flagset.Lookup(o.Flag))
}
