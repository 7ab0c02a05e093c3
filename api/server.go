package api

import (
	"campaignbot/retry"
	"campaignbot/state"
	"campaignbot/statestore"

	"github.com/gin-gonic/gin"
)

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(runState *state.Manager, store *statestore.Store, halt *retry.Halt) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	RegisterHealthRoutes(r)
	RegisterControlRoutes(r, runState, store, halt)
	return r
}
