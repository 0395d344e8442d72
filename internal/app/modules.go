package app

import (
	"log/slog"

	"github.com/specialistvlad/gridhost/internal/semantic"
	"github.com/specialistvlad/gridhost/modules/env_vars"
	prnt "github.com/specialistvlad/gridhost/modules/print"
)

// coreModules is the definitive list of native modules compiled into the
// gridhost binary.
func coreModules(logger *slog.Logger) []semantic.Module {
	return []semantic.Module{
		&env_vars.Module{},
		&prnt.Module{Logger: logger},
	}
}
