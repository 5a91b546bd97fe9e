// testserver simulates one pool backend: it reports its pool and release
// identity and can be pushed into error or timeout mode through the chaos
// endpoints, so failover behavior can be exercised without real outages.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

const (
	headerPool    = "X-App-Pool"
	headerRelease = "X-Release-Id"

	modeNone    = ""
	modeError   = "error"
	modeTimeout = "timeout"
)

func main() {
	port := getenv("PORT", "8000")
	pool := getenv("POOL", "blue")
	release := getenv("RELEASE_ID", "dev")

	var chaosMode atomic.Value
	chaosMode.Store(modeNone)

	identity := func(w http.ResponseWriter) {
		w.Header().Set(headerPool, pool)
		w.Header().Set(headerRelease, release)
	}

	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if chaosMode.Load() != modeNone {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		identity(w)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"healthy","pool":"%s"}`, pool)
	})

	http.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		switch chaosMode.Load() {
		case modeError:
			identity(w)
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"injected failure"}`)
			return
		case modeTimeout:
			// Hold the connection past any sane proxy read timeout
			time.Sleep(30 * time.Second)
			return
		}

		identity(w)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"pool":"%s","release":"%s"}`, pool, release)
	})

	http.HandleFunc("/chaos/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		mode := r.URL.Query().Get("mode")
		if mode != modeError && mode != modeTimeout {
			http.Error(w, "mode must be error or timeout", http.StatusBadRequest)
			return
		}
		chaosMode.Store(mode)
		log.Printf("[%s] chaos started: mode=%s", pool, mode)
		fmt.Fprintf(w, `{"chaos":"%s"}`, mode)
	})

	http.HandleFunc("/chaos/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		chaosMode.Store(modeNone)
		log.Printf("[%s] chaos stopped", pool)
		fmt.Fprint(w, `{"chaos":"off"}`)
	})

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch chaosMode.Load() {
		case modeError:
			identity(w)
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error":"injected failure"}`)
			return
		case modeTimeout:
			time.Sleep(30 * time.Second)
			return
		}

		identity(w)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"pool":"%s","release":"%s","path":"%s"}`, pool, release, r.URL.Path)
	})

	addr := ":" + port
	log.Printf("Test backend pool=%s release=%s listening on %s", pool, release, addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
