package cli

import (
	"fmt"

	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"
)

// levelFlag adapts a *zapcore.Level to pflag.Value.
type levelFlag struct {
	p *zapcore.Level
}

func (f levelFlag) String() string {
	if f.p == nil {
		return zapcore.InfoLevel.String()
	}
	return f.p.String()
}

func (f levelFlag) Set(s string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return fmt.Errorf("unknown log level %q; supported levels are debug, info, warn and error", s)
	}
	*f.p = lvl
	return nil
}

func (levelFlag) Type() string {
	return "level"
}

// LevelVarP defines a zapcore.Level flag. p is set to value until the flag is parsed.
func LevelVarP(fs *pflag.FlagSet, p *zapcore.Level, name, shorthand string, value zapcore.Level, usage string) {
	*p = value
	fs.VarP(levelFlag{p: p}, name, shorthand, usage)
}
