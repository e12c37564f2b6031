package api

import (
	"net/http"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"photofolio/internal/app"
)

var (
	buildOnce sync.Once
	runtime   *app.Runtime
	buildErr  error
)

// The background sweeper is not started in the serverless build: the host may
// suspend the process between requests, so sweeps run through the maintenance
// endpoint instead.
func lazyRuntime() (*app.Runtime, error) {
	buildOnce.Do(func() {
		runtime, buildErr = app.Build(app.Options{
			LoadDotEnv:    false,
			RunMigrations: app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
			StartSweeper:  false,
		})
	})
	return runtime, buildErr
}

// Handler is the serverless entrypoint. The runtime is built on the first
// request and reused for the life of the instance.
func Handler(w http.ResponseWriter, r *http.Request) {
	rt, err := lazyRuntime()
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"SERVER_ERROR","success":false,"message":"application bootstrap failed"}`))
		return
	}

	rt.Handler.ServeHTTP(w, r)
}
