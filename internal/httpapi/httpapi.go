// Package httpapi implements the HTTP façade of SPEC_FULL.md §4.11: a
// small echo/v4 JSON REST surface fronting the same evaluation and
// fetch/update operations the background sweep loops run
// periodically, for on-demand use (e.g. a "recheck me now" command).
// Grounded on the shape of James-Wolfley-steam-achievement-tracker's
// routes.go/main.go (the only example repo in the pack that runs a
// JSON HTTP façade) and original_source/shockwave/shockwave_interface/src/main.rs.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/shockwave-oss/shockwave/internal/database"
	"github.com/shockwave-oss/shockwave/internal/evaluator"
	"github.com/shockwave-oss/shockwave/internal/logging"
	"github.com/shockwave-oss/shockwave/internal/riotapi"
	"github.com/shockwave-oss/shockwave/internal/updater"
)

// Server wraps an echo instance bound to the updater core.
type Server struct {
	echo *echo.Echo
	db   *database.DB
	u    *updater.Updater
}

// New builds the façade and registers its two routes.
func New(db *database.DB, u *updater.Updater) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, db: db, u: u}
	e.POST("/api/v1/evaluate/:server_id/:user_id", s.handleEvaluate)
	e.POST("/api/v1/user/:user_id/update", s.handleUserUpdate)
	return s
}

// Start blocks serving on addr until the listener fails or is closed.
func (s *Server) Start(addr string) error {
	logging.Info(logging.HTTP).Logf("http façade listening on %s", addr)
	return s.echo.Start(addr)
}

// roleEvaluation is one role's applicability result in the evaluate
// response (§6).
type roleEvaluation struct {
	RoleID     int64                       `json:"role_id"`
	RoleName   string                      `json:"role_name"`
	Applies    bool                        `json:"applies"`
	Conditions []evaluator.ConditionResult `json:"conditions"`
}

func (s *Server) handleEvaluate(c echo.Context) error {
	ctx := c.Request().Context()

	serverID, err := strconv.ParseInt(c.Param("server_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid server_id"})
	}
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
	}

	evalCtx, err := s.db.GetEvaluationContext(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	roles, err := s.db.GetRolesAndConditionsForServer(ctx, serverID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	results := make([]roleEvaluation, 0, len(roles))
	for _, rc := range roles {
		applies, breakdown := evaluator.Evaluate(rc.Role, rc.Conditions, evalCtx)
		results = append(results, roleEvaluation{
			RoleID:     rc.Role.ID,
			RoleName:   rc.Role.Name,
			Applies:    applies,
			Conditions: breakdown,
		})
	}

	return c.JSON(http.StatusOK, map[string]any{"roles": results})
}

func (s *Server) handleUserUpdate(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid user_id"})
	}

	evalCtx, err := s.db.GetEvaluationContext(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusOK, map[string]bool{"successful": false})
	}

	if err := s.u.FetchAll(ctx, riotapi.PriorityUserAction, evalCtx); err != nil {
		logging.Warn(logging.HTTP).Logf("user update fetch_all user=%d: %v", userID, err)
		return c.JSON(http.StatusOK, map[string]bool{"successful": false})
	}

	if err := s.u.UpdateUser(ctx, userID); err != nil {
		logging.Warn(logging.HTTP).Logf("user update update_user user=%d: %v", userID, err)
		return c.JSON(http.StatusOK, map[string]bool{"successful": false})
	}

	return c.JSON(http.StatusOK, map[string]bool{"successful": true})
}

