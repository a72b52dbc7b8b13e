package controllers

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"oasis-billing/billing"
	"oasis-billing/billing/db"
)

func Signup(c *gin.Context) {
	// Get the email/pass off req Body
	var body struct {
		Email    string
		Password string
		Name     string
		TeamName string `json:"team_name"`
	}

	if c.Bind(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read body",
		})

		return
	}

	if body.Email == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Email and password are required",
		})
		return
	}

	// Hash the password
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), 10)

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to hash password.",
		})
		return
	}

	teamName := body.TeamName
	if teamName == "" {
		teamName = strings.Split(body.Email, "@")[0] + "'s team"
	}

	user := db.User{
		Email:    body.Email,
		Password: string(hash),
		UUID:     uuid.New().String(),
		Name:     body.Name,
	}

	// Every account starts with its own team; the signup user is its admin.
	err = db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		team := db.Team{
			Name:          teamName,
			Slug:          uuid.New().String()[:8],
			Plan:          "free",
			BillingStatus: "none",
			OwnerID:       user.ID,
		}
		if err := tx.Create(&team).Error; err != nil {
			return err
		}

		member := db.TeamMember{
			TeamID: team.ID,
			UserID: user.ID,
			Role:   "admin",
			Status: "active",
		}
		return tx.Create(&member).Error
	})

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to create user." + err.Error(),
		})

		return
	}

	// Respond
	c.JSON(http.StatusOK, gin.H{})
}

func Login(c *gin.Context) {
	var body struct {
		Email    string
		Password string
	}

	if c.Bind(&body) != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read body",
		})

		return
	}

	var user db.User
	db.DB.First(&user, "email = ?", body.Email)
	if user.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid email or password",
		})
		return
	}

	// Compare sent in password with saved users password
	err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(body.Password))

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid email or password",
		})
		return
	}

	// Generate a JWT token
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"exp": time.Now().Add(time.Hour * 24 * 30).Unix(),
	})

	// Sign and get the complete encoded token as a string using the secret
	tokenString, err := token.SignedString([]byte(os.Getenv("SECRET")))

	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to create token",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": tokenString,
	})
}

func User(c *gin.Context) {
	user, _ := c.Get("user")

	userinfo := user.(db.User)

	reply := gin.H{
		"email": userinfo.Email,
		"uuid":  userinfo.UUID,
		"name":  userinfo.Name,
	}

	var member db.TeamMember
	db.DB.First(&member, "user_id = ?", userinfo.ID)
	if member.ID != 0 {
		var team db.Team
		db.DB.First(&team, member.TeamID)

		reply["team"] = team.Name
		reply["role"] = member.Role
		reply["plan"] = team.Plan
		reply["billing_status"] = team.BillingStatus

		var sub db.Subscription
		db.DB.First(&sub, "team_id = ?", team.ID)
		if sub.ID != 0 {
			reply["subscription_status"] = sub.Status
			reply["period_end"] = sub.PeriodEnd.Format(time.RFC3339)
		}
	}

	c.JSON(http.StatusOK, reply)
}

func Plans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plans": billing.Plans,
	})
}
