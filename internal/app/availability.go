package app

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"consulting-calendar/internal/store"
)

// POST /api/admin/availability
// Accepts a list of weekly rules.
func (a *App) SetAvailabilityHandler(c *gin.Context) {
	var payload []store.AvailabilityRule
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	saved := make([]store.AvailabilityRule, 0, len(payload))
	for i := range payload {
		err := a.Backend.InsertAvailabilityRule(ctx, &payload[i])
		switch {
		case errors.Is(err, store.ErrRuleExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		case errors.Is(err, store.ErrInvalidRule):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		saved = append(saved, payload[i])
	}
	c.JSON(http.StatusCreated, saved)
}

// PUT /api/admin/availability/:rule_id
func (a *App) UpdateAvailabilityHandler(c *gin.Context) {
	ruleID, err := strconv.Atoi(c.Param("rule_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}
	var payload store.AvailabilityRule
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	payload.ID = ruleID

	err = a.Backend.UpdateAvailabilityRule(c.Request.Context(), &payload)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "availability not found"})
	case errors.Is(err, store.ErrRuleExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrInvalidRule):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, payload)
	}
}

// GET /api/admin/availability
func (a *App) ListAvailabilityHandler(c *gin.Context) {
	rules, err := a.Backend.ListAvailabilityRules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rules == nil {
		rules = []store.AvailabilityRule{}
	}
	c.JSON(http.StatusOK, rules)
}
