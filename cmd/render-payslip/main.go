// Command render-payslip writes the HTML payslip of one employee for one
// month to stdout.
package main

import (
	"bufio"
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/paydesk/internal/app"
	"github.com/Amund211/paydesk/internal/config"
	"github.com/Amund211/paydesk/internal/domain"
	"github.com/Amund211/paydesk/internal/hrapi"
	"github.com/Amund211/paydesk/internal/payroll"
	"github.com/Amund211/paydesk/internal/ratelimiting"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/Amund211/paydesk/internal/transport"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: render-payslip <employee-id> <YYYY-MM>")
	}

	employeeID := os.Args[1]
	month, err := domain.ParseMonth(os.Args[2])
	if err != nil {
		log.Fatalf("Invalid month: %v", err)
	}

	cfg, err := config.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	rules := payroll.DefaultRules()
	if path := cfg.StatutoryRulesPath(); path != "" {
		rules, err = payroll.LoadRules(path)
		if err != nil {
			log.Fatalf("Failed to load statutory rules: %v", err)
		}
	}

	limiter := ratelimiting.NewWindowLimiter(cfg.BackendRequestLimit(), time.Minute, time.Now, time.After)
	tr, err := transport.NewHTTPTransport(&http.Client{Timeout: 10 * time.Second}, limiter, cfg.BackendURL(), cfg.BackendAPIKey(), time.Now)
	if err != nil {
		log.Fatalf("Failed to create transport: %v", err)
	}
	coordinator, err := requestcoord.NewCoordinator(tr, requestcoord.NewMemoryStore(), cfg.CacheTTL(), cfg.DedupWaitTimeout(), time.Now, time.After)
	if err != nil {
		log.Fatalf("Failed to create coordinator: %v", err)
	}
	caller := coordinator.NewCaller()
	defer caller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	getPayslip := app.BuildGetPayslip(payroll.NewCalculator(rules), time.Now)
	payslip, err := getPayslip(ctx, hrapi.NewClient(caller, coordinator), employeeID, month)
	if err != nil {
		log.Fatalf("Failed to get payslip: %v", err)
	}

	out := bufio.NewWriter(os.Stdout)
	if err := payroll.RenderHTML(out, payslip); err != nil {
		log.Fatalf("Failed to render payslip: %v", err)
	}
	if err := out.Flush(); err != nil {
		log.Fatalf("Failed to write payslip: %v", err)
	}
}
