package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/psds-microservice/helpy/paths"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/psds-microservice/helpdesk-service/api"
	"github.com/psds-microservice/helpdesk-service/internal/handler"
	"github.com/psds-microservice/helpdesk-service/internal/model"
)

// New wires every route. ready may be nil.
func New(d handler.Deps, bg *handler.Background, ready func(*gin.Context) error) http.Handler {
	authH := handler.NewAuthHandler(d)
	ticketH := handler.NewTicketHandler(d, bg)
	wsH := handler.NewWSHandler(d)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(handler.RequestLogger(d.Log))
	r.GET(paths.PathHealth, handler.Health)
	r.GET(paths.PathReady, handler.Ready(ready))
	r.GET(paths.PathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, paths.PathSwagger+"/") })
	r.GET(paths.PathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = paths.PathSwagger + "/index.html"
			c.Request.RequestURI = paths.PathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})

	authG := r.Group("/auth")
	{
		authG.POST("/signup", authH.Signup)
		authG.POST("/login", authH.Login)
	}

	authn := handler.Authenticate(d.Tokens, d.Users, d.Log)
	agentOnly := handler.RequireRole(model.RoleAgent)
	create := []gin.HandlerFunc{
		handler.RequireRole(model.RoleUser),
		handler.RateLimit(d.Limiter, d.Log),
		ticketH.Create,
	}

	tickets := r.Group("/tickets", authn)
	{
		tickets.POST("", create...)
		tickets.POST("/", create...)
		tickets.GET("", ticketH.List)
		tickets.GET("/", ticketH.List)
		tickets.GET("/:id", ticketH.Get)
		tickets.POST("/:id/reply", agentOnly, ticketH.Reply)
		tickets.PATCH("/:id/status", agentOnly, ticketH.ChangeStatus)
	}

	r.GET("/ws/tickets/:id", wsH.Serve)

	return cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins(d.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})(r)
}

func corsOrigins(patterns []string) []string {
	if len(patterns) == 0 {
		return []string{"*"}
	}
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "*" || strings.Contains(p, "://") {
			out = append(out, p)
			continue
		}
		// websocket patterns are bare hosts
		out = append(out, "https://"+p, "http://"+p)
	}
	return out
}
