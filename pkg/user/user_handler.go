package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/baptistelechat/overti-me/internal/rest"
	log "github.com/sirupsen/logrus"
)

type UserDTO struct {
	Uid       string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type CredentialsDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Handler struct {
	userService Service
}

func NewHandler(userService Service) *Handler {
	return &Handler{
		userService: userService,
	}
}

// Signup godoc
// @Summary Create an account
// @Description Register a new account on the remote store
// @Tags Account
// @Accept json
// @Produce json
// @Param credentials body CredentialsDTO true "Credentials"
// @Success 201 {object} UserDTO
// @Failure 400 {object} rest.ErrorResponse "Invalid request"
// @Failure 409 {object} rest.ErrorResponse "Email already registered"
// @Router /api/account/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	log.Debug("Creating account")

	var credentials CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body format", "")
		return
	}

	created, err := h.userService.Signup(r.Context(), credentials.Email, credentials.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserDataInvalid):
			rest.WriteError(w, http.StatusBadRequest, "Invalid user data", err.Error())
		case errors.Is(err, ErrEmailTaken):
			rest.WriteError(w, http.StatusConflict, "Email already registered", "")
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	rest.WriteJSON(w, http.StatusCreated, userToDTO(created))
}

// CurrentUser godoc
// @Summary Get current account
// @Tags Account
// @Produce json
// @Success 200 {object} UserDTO
// @Failure 401 {string} string "Unauthorized"
// @Failure 404 {string} string "User Not Found"
// @Router /api/account/current [get]
// @Security Bearer
func (h *Handler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	log.Trace("Getting current user")

	currentUser, err := h.userService.GetCurrentUser(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, ErrNoUser):
			w.WriteHeader(http.StatusUnauthorized)
		case errors.Is(err, ErrUserNotFound):
			w.WriteHeader(http.StatusNotFound)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	rest.WriteJSON(w, http.StatusOK, userToDTO(currentUser))
}

func userToDTO(user User) UserDTO {
	return UserDTO{
		Uid:       user.Uid,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}
