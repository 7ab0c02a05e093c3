package api

import (
	"net/http"

	"campaignbot/retry"
	"campaignbot/state"
	"campaignbot/statestore"

	"github.com/gin-gonic/gin"
)

// RegisterControlRoutes registers the operator control surface: run
// status, manual halt, and checkpoint reset.
func RegisterControlRoutes(r *gin.Engine, runState *state.Manager, store *statestore.Store, halt *retry.Halt) {
	g := r.Group("/api")
	g.GET("/status", handleStatus(runState, store))
	g.POST("/halt", handleHalt(halt))
	g.DELETE("/state", handleClearState(store))
}

// handleStatus returns the run state, ring-buffer logs and the current
// checkpoint snapshot.
func handleStatus(runState *state.Manager, store *statestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"run":        runState.GetStatus(),
			"checkpoint": store.Checkpoint(),
		})
	}
}

// handleHalt raises the halt flag; in-flight units finish, no new
// batch starts.
func handleHalt(halt *retry.Halt) gin.HandlerFunc {
	return func(c *gin.Context) {
		halt.Raise("operator halt via API")
		c.JSON(http.StatusAccepted, gin.H{"status": "halt raised"})
	}
}

// handleClearState resets the checkpoint to its default empty state.
func handleClearState(store *statestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := store.Clear(); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "state cleared"})
	}
}
