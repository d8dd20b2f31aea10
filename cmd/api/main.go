package main

import (
    "context"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"

    "dispatchd/internal/api"
    "dispatchd/internal/config"
    "dispatchd/internal/metrics"
)

func main() {
    cfg, err := config.Load()
    if err != nil {
        log.Fatalf("failed to load config: %v", err)
    }
    srvDeps, err := api.NewServer(cfg)
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // ETA
    mux.HandleFunc("/v1/eta", srvDeps.ETAHandler)

    // Merchants
    mux.HandleFunc("/v1/merchants/load", srvDeps.AllMerchantsLoadHandler)
    mux.HandleFunc("/v1/merchants/", srvDeps.MerchantByIDHandler) // /{id}/load, /{id}/drivers

    // Orders
    mux.HandleFunc("/v1/orders/queue", srvDeps.OrdersQueueHandler)

    // Drivers
    mux.HandleFunc("/v1/drivers/ws", srvDeps.DriverWSHandler)
    mux.HandleFunc("/v1/drivers/", srvDeps.DriversHandler) // /{id}/location, /{id}/events/stream

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)

    // Ops
    mux.HandleFunc("/v1/debug", srvDeps.DebugJSON)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    srv := &http.Server{
        Addr:              cfg.Addr,
        Handler:           logMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    srvDeps.Weather.Interval = time.Duration(cfg.WeatherPollMinutes) * time.Minute
    go srvDeps.Weather.Run(context.Background())

    log.Printf("API listening on %s", cfg.Addr)
    if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

func logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(sw, r)
        dur := time.Since(start)
        status := http.StatusText(sw.status)
        path := metricsPath(r.URL.Path)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, sw.status, dur)
    })
}

var fixedPaths = map[string]bool{
    "/v1/eta":            true,
    "/v1/merchants/load": true,
    "/v1/orders/queue":   true,
    "/v1/drivers/ws":     true,
    "/healthz":           true,
    "/readyz":            true,
    "/v1/debug":          true,
    "/metrics":           true,
}

// metricsPath collapses parameterized paths to their route pattern so
// per-driver and per-merchant ids never become prometheus label values.
func metricsPath(p string) string {
    if fixedPaths[p] {
        return p
    }
    switch {
    case strings.HasPrefix(p, "/v1/drivers/") && strings.HasSuffix(p, "/location"):
        return "/v1/drivers/{id}/location"
    case strings.HasPrefix(p, "/v1/drivers/") && strings.HasSuffix(p, "/events/stream"):
        return "/v1/drivers/{id}/events/stream"
    case strings.HasPrefix(p, "/v1/merchants/") && strings.HasSuffix(p, "/load"):
        return "/v1/merchants/{id}/load"
    case strings.HasPrefix(p, "/v1/merchants/") && strings.HasSuffix(p, "/drivers"):
        return "/v1/merchants/{id}/drivers"
    }
    return "other"
}

type statusWriter struct {
    http.ResponseWriter
    status int
}

func (w *statusWriter) WriteHeader(code int) {
    w.status = code
    w.ResponseWriter.WriteHeader(code)
}
