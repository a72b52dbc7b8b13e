package controllers

import (
	"time"

	"github.com/gin-gonic/gin"

	"oasis-billing/billing"
	"oasis-billing/billing/db"
)

// SetPlan grants a plan to a user's team without a payment, for support and
// manual invoicing cases. Gated by AdminAuth on the route.
func SetPlan(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Plan  string `json:"plan"`
	}

	if err := c.BindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "Invalid request"})
		return
	}

	plan, ok := billing.PlanByID(req.Plan)
	if !ok {
		c.JSON(400, gin.H{"error": "Invalid plan"})
		return
	}

	var user db.User
	if err := db.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		c.JSON(404, gin.H{"error": "User not found"})
		return
	}

	start := time.Now()
	err := store.ActivatePlan(c.Request.Context(), user.ID, plan.ID, "manual:"+time.Now().UTC().Format("20060102150405"), start, billing.PeriodEnd(start))
	if err != nil {
		c.JSON(500, gin.H{"error": "Failed to update plan: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"message": "Plan updated successfully",
		"email":   user.Email,
		"plan":    plan.ID,
	})
}
