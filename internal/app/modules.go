package app

import (
	"io"

	"github.com/specialistvlad/gridflow/internal/registry"
	"github.com/specialistvlad/gridflow/modules/aggregate"
	"github.com/specialistvlad/gridflow/modules/assert"
	"github.com/specialistvlad/gridflow/modules/print"
	"github.com/specialistvlad/gridflow/modules/text"
)

// coreModules is the definitive list of all modules that are compiled into
// the gridflow binary. print writes to the application output.
func coreModules(outW io.Writer) []registry.Module {
	return []registry.Module{
		&text.Module{},
		&aggregate.Module{},
		&assert.Module{},
		&print.Module{Out: outW},
	}
}
