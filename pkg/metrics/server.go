package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/foxssake/nohub/pkg/log"
)

// Path 是指标的导出路径。
const Path = "/metrics"

// Server 通过 HTTP 导出指标，只响应 GET /metrics，其余请求一律 404。
type Server struct {
	log.Binder

	ln     net.Listener
	server *http.Server
}

// NewServer 在 addr 上监听，并导出 m 中注册的指标。
func NewServer(addr string, m *Metrics) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "metrics: listen on %s", addr)
	}

	s := &Server{
		ln: ln,
		server: &http.Server{
			Handler:           Handler(m),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.Bind("metrics", "server", zap.Stringer("addr", ln.Addr()))
	return s, nil
}

// Handler 返回导出 m 的 HTTP Handler。
func Handler(m *Metrics) http.Handler {
	metricsHandler := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != Path {
			http.NotFound(w, r)
			return
		}
		metricsHandler.ServeHTTP(w, r)
	})
}

// Addr 返回实际监听的地址。
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve 阻塞直至 ctx 取消，随后优雅关闭。
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.Logger().Info("metrics server started")
	err := s.server.Serve(s.ln)
	if errors.Is(err, http.ErrServerClosed) {
		s.Logger().Info("metrics server stopped")
		return nil
	}
	return errors.Wrap(err, "metrics: serve failed")
}
