package app

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"consulting-calendar/internal/calendar"
	"consulting-calendar/internal/config"
	"consulting-calendar/internal/store"
)

// App holds the collaborators the HTTP handlers work with.
type App struct {
	Backend store.Backend
	// Lister overrides Backend for month listings, e.g. to merge in Google
	// Calendar events.
	Lister  calendar.AppointmentLister
	Auth    Authenticator
	Display config.Display

	OAuth     *oauth2.Config
	TokenFile string

	Now func() time.Time
}

func (a *App) lister() calendar.AppointmentLister {
	if a.Lister != nil {
		return a.Lister
	}
	return a.Backend
}

// getAppointment looks id up through the month lister when it can, so
// imported records open like stored ones.
func (a *App) getAppointment(ctx context.Context, id string) (calendar.AppointmentRecord, error) {
	if g, ok := a.lister().(calendar.AppointmentGetter); ok {
		return g.GetAppointment(ctx, id)
	}
	return a.Backend.GetAppointment(ctx, id)
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// controller mounts a grid for viewer on month.
func (a *App) controller(v calendar.Viewer, m calendar.Month) *calendar.Controller {
	return calendar.NewController(calendar.GridConfig{
		Lister:    a.lister(),
		OpenSlots: a.Backend,
		Submitter: a.Backend,
		Viewer:    v,
		Options:   a.Display.RenderOptions(),
	}, m)
}

// Router builds the gin engine with every route.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), requestID())

	router.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	// OAuth2 callback (must be before auth middleware)
	router.GET("/oauth2callback", a.GoogleOAuth2CallbackHandler)

	router.Use(a.Auth.SessionMiddleware())

	anyRole := a.RequireRoles(calendar.RoleAdmin, calendar.RoleEngineer, calendar.RoleCompany)

	api := router.Group("/api")
	{
		cal := api.Group("/calendar/:year/:month", anyRole)
		{
			cal.GET("", a.MonthViewHandler)
			cal.GET("/days/:day", a.DayDetailHandler)
			cal.POST("/slots/activate", a.ActivateSlotHandler)
			cal.GET("/ics", a.ExportICSHandler)
		}

		appts := api.Group("/appointments")
		{
			appts.POST("", a.RequireRoles(calendar.RoleCompany), a.ScheduleHandler)
			appts.GET("/:id", anyRole, a.GetAppointmentHandler)
			appts.DELETE("/:id", a.RequireRoles(calendar.RoleAdmin, calendar.RoleCompany), a.CancelAppointmentHandler)
		}

		admin := api.Group("/admin", a.RequireRoles(calendar.RoleAdmin))
		{
			admin.PUT("/appointments/:id/engineer", a.AssignEngineerHandler)
			admin.POST("/availability", a.SetAvailabilityHandler)
			admin.PUT("/availability/:rule_id", a.UpdateAvailabilityHandler)
			admin.GET("/availability", a.ListAvailabilityHandler)
			admin.GET("/google/auth", a.GoogleAuthHandler)
		}
	}
	return router
}
