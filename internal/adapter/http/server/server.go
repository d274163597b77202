package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/pointride/dispatch/config"
	"github.com/pointride/dispatch/internal/adapter/http/handler"
	"github.com/pointride/dispatch/internal/adapter/http/middleware"
	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
)

const serverIPAddress = "%s:%s"

type API struct {
	mux    *http.ServeMux
	server *http.Server
	routes *handlers
	m      *middleware.Middleware

	addr string
	log  logger.Logger
}

type handlers struct {
	ride   *handler.Ride
	admin  *handler.Admin
	health *handler.Health
	ws     http.HandlerFunc
}

func New(
	cfg config.HTTPConfig,
	rideService handler.RideService,
	adminService handler.AdminService,
	completionService handler.CompletionService,
	queueService handler.QueueService,
	tokens middleware.TokenValidator,
	wsHandler http.HandlerFunc,
	log logger.Logger,
) (*API, error) {
	if tokens == nil {
		return nil, errors.New("token validator is required")
	}

	routes := &handlers{
		ride:   handler.NewRide(rideService, log),
		admin:  handler.NewAdmin(adminService, completionService, queueService, log),
		health: handler.NewHealth("dispatch", log),
		ws:     wsHandler,
	}

	mid := middleware.NewMiddleware(tokens, log)

	api := &API{
		mux:    http.NewServeMux(),
		routes: routes,
		m:      mid,
		addr:   fmt.Sprintf(serverIPAddress, cfg.Host, cfg.Port),
		log:    log,
	}

	api.server = &http.Server{
		Addr:    api.addr,
		Handler: mid.Chain(api.mux),
	}

	api.setupRoutes()

	return api, nil
}

func (a *API) Run(ctx context.Context, errCh chan<- error) {
	go func() {
		ctx = wrap.WithAction(ctx, "http_server_start")
		a.log.Info(ctx, "started http server", "address", a.addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
			return
		}
	}()
}

func (a *API) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	ctx = wrap.WithAction(ctx, "http_server_stop")

	a.log.Debug(ctx, "shutting down HTTP server...", "address", a.addr)
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	a.log.Debug(ctx, "shutting down HTTP server completed")

	return nil
}
