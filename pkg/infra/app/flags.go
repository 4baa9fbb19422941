package app

import (
	"github.com/spf13/pflag"
)

// CliOptions is implemented by the root options of an application.
type CliOptions interface {
	// Flags returns the flags grouped by section.
	Flags() NamedFlagSets
	// Complete fills derived values after config and flags are loaded.
	Complete() error
	// Validate reports every invalid setting at once.
	Validate() error
}

// NamedFlagSets keeps flag sets in registration order.
type NamedFlagSets struct {
	Order    []string
	FlagSets map[string]*pflag.FlagSet
}

// FlagSet returns the named flag set, creating it on first use.
func (nfs *NamedFlagSets) FlagSet(name string) *pflag.FlagSet {
	if nfs.FlagSets == nil {
		nfs.FlagSets = map[string]*pflag.FlagSet{}
	}
	if _, ok := nfs.FlagSets[name]; !ok {
		nfs.FlagSets[name] = pflag.NewFlagSet(name, pflag.ExitOnError)
		nfs.Order = append(nfs.Order, name)
	}
	return nfs.FlagSets[name]
}
