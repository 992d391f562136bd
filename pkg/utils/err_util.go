package utils

import (
	"fmt"

	"github.com/echoface/adslot/pkg/logger"
)

// IgnoreErr logs err at warn level instead of propagating it.
func IgnoreErr(err error, format string, vs ...any) {
	if err == nil {
		return
	}
	logger.Default.Warn(fmt.Sprintf(format, vs...), "error", err)
}

func PanicIf(cond bool, format string, vs ...any) {
	if !cond {
		return
	}
	panic(fmt.Errorf(format, vs...))
}

func PanicIfErr(err error, format string, vs ...any) {
	if err == nil {
		return
	}
	panic(fmt.Errorf(format+": %w", append(vs, err)...))
}
