// Package catalog assembles the builtin detector set. Callers filter
// it through config and hand the result to an engine session.
package catalog

import (
	"github.com/panbanda/mend/pkg/rules"
	"github.com/panbanda/mend/pkg/rules/evalcall"
	"github.com/panbanda/mend/pkg/rules/insecureurl"
	"github.com/panbanda/mend/pkg/rules/satdcomment"
	"github.com/panbanda/mend/pkg/rules/trailingspace"
	"github.com/panbanda/mend/pkg/rules/weakhash"
)

// Detectors returns a fresh instance of every builtin detector.
func Detectors() []rules.Detector {
	return []rules.Detector{
		evalcall.New(),
		insecureurl.New(),
		satdcomment.New(),
		trailingspace.New(),
		weakhash.New(),
	}
}

// Registry returns a registry with every builtin detector registered.
func Registry() *rules.Registry {
	r := rules.NewRegistry()
	for _, d := range Detectors() {
		// Builtin names are unique; a clash is a programming error.
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}
