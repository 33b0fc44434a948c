// Benchmark drives the deposit endpoint and reports throughput plus the
// status-code breakdown. Log in first and pass the bearer token in.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var (
	targetURL   string
	token       string
	concurrency int
	duration    time.Duration
	amount      int64
)

var (
	totalRequests uint64
	success201    uint64
	fail4xx       uint64
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", "", "Bearer token of the wallet under test")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.Int64Var(&amount, "amount", 100, "Deposit amount in kobo")
}

func main() {
	flag.Parse()
	if token == "" {
		log.Fatal("-token is required")
	}
	log.Printf("Starting benchmark | workers: %d | duration: %s", concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}
	wg.Wait()

	elapsed := time.Since(start)
	total := atomic.LoadUint64(&totalRequests)
	log.Printf("Requests: %d | 201: %d | 4xx: %d | other: %d | rps: %.1f",
		total,
		atomic.LoadUint64(&success201),
		atomic.LoadUint64(&fail4xx),
		atomic.LoadUint64(&failOther),
		float64(total)/elapsed.Seconds(),
	)
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		body, _ := json.Marshal(map[string]any{"amount": amount, "status": "successful"})
		req, _ := http.NewRequest(http.MethodPost,
			targetURL+"/api/v1/transactions/deposit", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		atomic.AddUint64(&totalRequests, 1)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusCreated:
			atomic.AddUint64(&success201, 1)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			atomic.AddUint64(&fail4xx, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
	}
}
