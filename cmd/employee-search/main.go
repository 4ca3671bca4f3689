// Command employee-search reads search text from stdin, one query per line,
// and prints the matching employees once typing has paused.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/Amund211/paydesk/internal/config"
	"github.com/Amund211/paydesk/internal/debounce"
	"github.com/Amund211/paydesk/internal/hrapi"
	"github.com/Amund211/paydesk/internal/ratelimiting"
	"github.com/Amund211/paydesk/internal/requestcoord"
	"github.com/Amund211/paydesk/internal/transport"
)

func main() {
	delay := flag.Duration("delay", 300*time.Millisecond, "how long the input must be idle before searching")
	flag.Parse()

	cfg, err := config.ConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
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
	client := hrapi.NewClient(caller, coordinator)

	var (
		mutex        sync.Mutex
		cancelSearch context.CancelFunc = func() {}
	)

	search := func(query string) {
		ctx, cancel := context.WithCancel(context.Background())
		mutex.Lock()
		// Only the latest query is of interest
		cancelSearch()
		cancelSearch = cancel
		mutex.Unlock()
		defer cancel()

		employees, err := client.ListEmployees(ctx, query)
		if errors.Is(err, requestcoord.ErrRequestCancelled) {
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "search %q failed: %v\n", query, err)
			return
		}

		fmt.Printf("%d match(es) for %q\n", len(employees), query)
		for _, employee := range employees {
			fmt.Printf("  %s\t%s\t%s\n", employee.Code, employee.Name, employee.Department)
		}
	}

	debouncer := debounce.New(*delay, time.After, search)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		debouncer.Set(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Failed to read stdin: %v", err)
	}

	// Let the last query settle. Close waits for the search it started.
	time.Sleep(*delay + 50*time.Millisecond)
	debouncer.Close()
}
