package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hamed0406/pgkeepalive/internal/domain"
)

// cli triggers one check cycle on a running API and prints one line per database.
// Exit status is 1 when any database failed or none were configured.
func main() {
	api := strings.TrimRight(os.Getenv("API_BASE"), "/")
	if api == "" {
		api = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, api+"/run-checks", nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid API_BASE:", err)
		os.Exit(2)
	}
	if key := os.Getenv("API_KEY"); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(2)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, "API returned status:", resp.Status)
		os.Exit(2)
	}

	var out domain.RunResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintln(os.Stderr, "Bad response:", err)
		os.Exit(2)
	}

	fmt.Printf("[%s] %s\n", out.Timestamp, out.Summary)
	failed := len(out.Results) == 0
	for _, r := range out.Results {
		fmt.Println(formatResult(r))
		if r.Error != nil {
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func formatResult(r domain.Result) string {
	if r.Error == nil {
		latency := "-"
		if r.Latency != nil {
			latency = fmt.Sprintf("%dms", *r.Latency)
		}
		return fmt.Sprintf("✔ %s: %s, latency %s, attempts %d", r.Name, r.Status, latency, r.Attempts)
	}
	return fmt.Sprintf("✖ %s: %s after %d attempts: %s", r.Name, r.Status, r.Attempts, *r.Error)
}
