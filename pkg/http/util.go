package http

import (
	"time"

	xutil "SignalGate/pkg/util"

	"github.com/labstack/echo/v4"
)

// QueryInt reads an integer query parameter or returns def.
func QueryInt(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}

// QuerySince reads an absolute or relative ("2h") lower time bound.
func QuerySince(c echo.Context, name string, now time.Time) (time.Time, bool) {
	return xutil.ParseSince(c.QueryParam(name), now)
}
