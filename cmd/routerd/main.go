package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"routerd/internal/api"
	"routerd/internal/auditlog"
	"routerd/internal/config"
	"routerd/internal/ctlerr"
	"routerd/internal/eventbus"
	"routerd/internal/ifaceregistry"
	"routerd/internal/nht"
	"routerd/internal/nicdriver"
	"routerd/internal/portmgr"
	"routerd/internal/routetable"
	"routerd/internal/vlanmgr"
	"routerd/internal/worker"
)

const Version = "1.0.0"

func main() {
	cfg := config.Parse()

	auditKey, err := auditlog.LoadOrCreateKey(cfg.AuditKeyPath)
	if err != nil {
		log.Printf("WARNING: audit HMAC key unavailable (%v) — chain disabled", err)
		auditKey = nil
	}
	audit, err := auditlog.New(cfg.AuditLogPath, auditKey)
	if err != nil {
		log.Fatalf("failed to open audit log: %v", err)
	}
	defer audit.Close()

	registry := ifaceregistry.New()
	workers := worker.NewManager()

	var driver nicdriver.Driver
	if cfg.UseLinuxDriver {
		driver = nicdriver.NewLinux()
	} else {
		driver = nicdriver.NewFake(nicdriver.SocketAny)
	}

	ports := portmgr.New(driver, registry, workers)
	vlans := vlanmgr.New(driver, registry)
	nextHops := nht.New()
	routes := routetable.New(nextHops)

	events := eventbus.NewHub()
	go events.Run()
	defer events.Stop()

	dispatcher := api.New(api.Deps{
		Registry: registry,
		Ports:    ports,
		Vlans:    vlans,
		NextHops: nextHops,
		Routes:   routes,
		Audit:    audit,
		Events:   events,
	})

	log.Printf("routerd v%s starting...", Version)

	r := mux.NewRouter()
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/api/{kind}", apiHandler(dispatcher)).Methods("POST")

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	audit.Success("daemon.start", cfg.ListenAddr, 0)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down gracefully...")
	audit.Success("daemon.stop", "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	log.Println("server stopped")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// apiHandler is an illustrative HTTP binder over the request-kind
// dispatch table, decoding the request body as the JSON shape expected
// for {kind} and returning the handler's response or error as JSON.
// Not part of the control-plane core: a real deployment would drive
// api.Dispatcher from whatever transport it embeds routerd into.
// apiHandler decodes requests as a generic map, which does not satisfy
// the concrete request structs api.Dispatch's handlers type-assert
// against; a production transport would decode into those structs
// directly. This demo binder exists to exercise the dispatch table
// shape, not to be a wire protocol, so it recovers a type-assertion
// panic into a 400 rather than crash the process.
func apiHandler(d *api.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := api.Kind(mux.Vars(r)["kind"])

		var body map[string]any
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}
		}

		w.Header().Set("Content-Type", "application/json")
		resp, err := safeDispatch(d, kind, body)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func safeDispatch(d *api.Dispatcher, kind api.Kind, body map[string]any) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ctlerr.Invalid(string(kind), "request shape did not match this demo binder's decoding")
		}
	}()
	return d.Dispatch(kind, string(kind), body)
}
