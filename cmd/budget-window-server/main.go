package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joelkehle/budgetwindow/internal/budgetwindow"
	"github.com/joelkehle/budgetwindow/internal/httpapi"
	"github.com/joelkehle/budgetwindow/internal/telemetry"
)

func main() {
	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}

	shutdown, err := telemetry.Setup(context.Background(), "budget-window-server")
	if err != nil {
		log.Fatalf("telemetry setup: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	h := httpapi.NewServer(budgetwindow.NewOrchestrator())
	log.Printf("budget-window-server listening on %s", addr)
	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal(err)
	}
}
