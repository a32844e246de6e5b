package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"bookexchange/config"
	"bookexchange/db"
	"bookexchange/models"
	"bookexchange/utils"

	"github.com/gin-gonic/gin"
)

// emailRegex accepts the basic local@domain.tld shape. Anything fancier is
// out of scope for a plaintext-credential demo API.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// --- Register ---

// RegisterRequest defines the expected body for user registration.
type RegisterRequest struct {
	Name         string `json:"name"`
	MobileNumber string `json:"mobileNumber"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Role         string `json:"role"`
}

// UserResponse is the public view of a user account. The stored password is
// never included.
type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResponse extends the public user view with the session token.
type LoginResponse struct {
	UserResponse
	Token string `json:"token"`
}

// RegisterHandler creates a new user account.
// @Summary      Register a new user
// @Description  Creates an account with the given name, email, password, and role.
// @Description  The role decides what the account can do: an Owner can list books, a Seeker can only browse.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        user body RegisterRequest true "Account details. mobileNumber is optional."
// @Success      201  {object}  UserResponse "The created account, without the password."
// @Failure      400  {object}  utils.APIError "Missing or malformed fields."
// @Failure      409  {object}  utils.APIError "A user with this email already exists."
// @Failure      500  {object}  utils.APIError "Unexpected server error."
// @Router       /api/users/register [post]
func RegisterHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	// Field checks in a fixed order: presence, email shape, password length, role.
	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		utils.GinBadRequest(c, "Missing required fields: name, email, password, role.")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		utils.GinBadRequest(c, "Invalid email format.")
		return
	}
	if len(req.Password) < 6 {
		utils.GinBadRequest(c, "Password must be at least 6 characters long.")
		return
	}
	if req.Role != models.RoleOwner && req.Role != models.RoleSeeker {
		utils.GinBadRequest(c, `Role must be either "Owner" or "Seeker".`)
		return
	}

	user := models.User{
		Name:         req.Name,
		MobileNumber: req.MobileNumber,
		Email:        req.Email,
		Password:     req.Password, // stored verbatim
		Role:         req.Role,
	}

	created, err := database.CreateUser(user)
	if err != nil {
		if errors.Is(err, db.ErrEmailExists) {
			utils.GinConflict(c, "User with this email already exists.")
			return
		}
		utils.GinInternalServerError(c, "Internal server error during registration.")
		return
	}

	c.JSON(http.StatusCreated, UserResponse{
		ID:    created.ID,
		Name:  created.Name,
		Email: created.Email,
		Role:  created.Role,
	})
}

// --- Login ---

// LoginRequest defines the expected body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler authenticates a user by plaintext password comparison.
// @Summary      Log in
// @Description  Checks the email/password pair and returns the account details plus a session token.
// @Description  The token is a deterministic string derived from the user id, not a cryptographic credential.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        credentials body LoginRequest true "Login credentials."
// @Success      200  {object}  LoginResponse
// @Failure      400  {object}  utils.APIError "Missing or malformed fields."
// @Failure      401  {object}  utils.APIError "Unknown email or wrong password; the message does not say which."
// @Failure      500  {object}  utils.APIError "Unexpected server error."
// @Router       /api/users/login [post]
func LoginHandler(c *gin.Context, database *db.Database, cfg *config.Config) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.GinBadRequest(c, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	if req.Email == "" || req.Password == "" {
		utils.GinBadRequest(c, "Missing required fields: email, password.")
		return
	}
	if !emailRegex.MatchString(req.Email) {
		utils.GinBadRequest(c, "Invalid email format.")
		return
	}

	// Same generic message for unknown email and wrong password so the
	// response does not reveal whether the account exists.
	user, found := database.GetUserByEmail(req.Email)
	if !found || user.Password != req.Password {
		utils.GinUnauthorized(c, "Invalid email or password.")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		UserResponse: UserResponse{
			ID:    user.ID,
			Name:  user.Name,
			Email: user.Email,
			Role:  user.Role,
		},
		Token: "mock-token-for-" + user.ID,
	})
}
