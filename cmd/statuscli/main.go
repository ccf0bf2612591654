package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"

	"github.com/hamed0406/uptimenotifier/internal/config"
)

// timeoutMargin covers the HTTP round trip on top of the server's wait.
const timeoutMargin = 10 * time.Second

func main() {
	_ = godotenv.Load()

	api := os.Getenv("API_BASE")
	if api == "" {
		api = "http://localhost:8080"
	}
	base := flag.String("api", api, "status API base URL")
	key := flag.String("key", os.Getenv("STATUS_API_KEY"), "status API key")
	timeout := flag.Duration("timeout", defaultTimeout(), "request timeout (default follows STATUS_CEILING_MS)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	statuses, err := fetch(ctx, http.DefaultClient, strings.TrimRight(*base, "/"), *key)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error contacting API:", err)
		os.Exit(1)
	}
	if down := render(os.Stdout, statuses); down > 0 {
		os.Exit(2)
	}
}

// defaultTimeout outlasts the server's status ceiling so a slow sweep
// still returns its partial answer.
func defaultTimeout() time.Duration {
	return config.FromEnv().StatusCeiling + timeoutMargin
}

func fetch(ctx context.Context, c *http.Client, base, key string) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %s", resp.Status)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

// render prints a NAME/STATUS table sorted by name and returns how many
// entities are DOWN.
func render(w io.Writer, statuses map[string]string) int {
	names := make([]string, 0, len(statuses))
	for n := range statuses {
		names = append(names, n)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATUS")
	down := 0
	for _, n := range names {
		if statuses[n] != "UP" {
			down++
		}
		fmt.Fprintf(tw, "%s\t%s\n", n, statuses[n])
	}
	_ = tw.Flush()
	if len(names) == 0 {
		fmt.Fprintln(w, "(no entity answered in time)")
	}
	return down
}
