package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jcob-sikorski/mech-mashup/internal/apierror"
	"github.com/jcob-sikorski/mech-mashup/internal/auth"
	"github.com/jcob-sikorski/mech-mashup/internal/services"
	"github.com/jcob-sikorski/mech-mashup/pkg/utils"
)

// UserHandler handles the users resource. Access control is applied by the
// router through auth.RequirePermission before these run.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// List returns every account, newest first.
func (h *UserHandler) List(c *gin.Context) {
	accounts, err := h.userService.ListAccounts(c.Request.Context())
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// Retrieve returns one account. A non-integer id is reported as not found.
func (h *UserHandler) Retrieve(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		utils.SendAPIError(c, apierror.NotFound(""))
		return
	}

	account, err := h.userService.GetAccount(c.Request.Context(), id)
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// Update applies a PUT or PATCH to the account named in the path.
func (h *UserHandler) Update(c *gin.Context) {
	id, ok := accountID(c)
	if !ok {
		utils.SendAPIError(c, apierror.NotFound(""))
		return
	}
	h.update(c, id)
}

// Me returns the caller's own account.
func (h *UserHandler) Me(c *gin.Context) {
	account, err := h.userService.GetAccount(c.Request.Context(), auth.CurrentIdentity(c).AccountID)
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// UpdateMe applies a PUT or PATCH to the caller's own account.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	h.update(c, auth.CurrentIdentity(c).AccountID)
}

func (h *UserHandler) update(c *gin.Context, id int64) {
	body, err := c.GetRawData()
	if err != nil {
		utils.SendAPIError(c, apierror.ParseError(err))
		return
	}

	partial := c.Request.Method == http.MethodPatch
	account, err := h.userService.UpdateAccount(c.Request.Context(), id, body, partial)
	if err != nil {
		utils.SendAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func accountID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
