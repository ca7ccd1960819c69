// Command demobackend is a trivial echo/ping service standing in for
// the fleet of backend services trustgate fronts: enough of a real
// upstream that the router's path-rewrite and proxy dispatch have
// something to prove themselves against.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"time"
)

var addr = flag.String("addr", ":9001", "listen address")

func main() {
	flag.Parse()

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", handlePing)
	mux.HandleFunc("/echo", handleEcho)

	log.Printf("demobackend listening on %s", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func handleEcho(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"method":  r.Method,
		"path":    r.URL.Path,
		"query":   r.URL.RawQuery,
		"headers": r.Header,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
