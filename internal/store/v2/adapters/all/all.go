// Package all importa todos los adapters para auto-registro.
//
//	import _ "github.com/dropDatabas3/socialjohn/internal/store/v2/adapters/all"
package all

import (
	_ "github.com/dropDatabas3/socialjohn/internal/store/v2/adapters/memory"
	_ "github.com/dropDatabas3/socialjohn/internal/store/v2/adapters/pg"
)
