package botruntime

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"
)

type healthStatus struct {
	Status       string `json:"status"`
	Session      bool   `json:"session"`
	RunningTasks int64  `json:"running_tasks"`
}

func (r *Runtime) healthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := healthStatus{Status: "ok", RunningTasks: r.running.Load()}
		code := http.StatusOK
		if sess, err := r.deps.Sessions.Current(); err == nil && sess != nil && !sess.Closed() {
			st.Session = true
		} else {
			st.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(st)
	})
	return mux
}

// serveHealth listens on addr until ctx is done. Listen failures are logged
// and do not stop the bot.
func (r *Runtime) serveHealth(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		r.logger.Warn("health_server_start_error", "addr", addr, "error", err.Error())
		return nil
	}
	srv := &http.Server{Handler: r.healthHandler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	r.logger.Info("health_server_start", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		r.logger.Warn("health_server_error", "error", err.Error())
		return nil
	}
}
