// Seed loads sample alerts from a JSONL file into a running argus server
// via the ingest endpoint. Each line is one alert object.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	var (
		file    = flag.String("file", "sample_data/alerts.jsonl", "Path to JSONL file of alerts")
		addr    = flag.String("addr", "http://localhost:8080", "Base URL of the argus API server")
		rebuild = flag.Bool("rebuild", false, "Trigger an incident rebuild after seeding")
		timeout = flag.Duration("timeout", 10*time.Second, "Per-request timeout")
	)
	flag.Parse()

	if err := run(*file, *addr, *rebuild, *timeout); err != nil {
		fmt.Fprintln(os.Stderr, "seed failed:", err)
		os.Exit(1)
	}
}

func run(file, addr string, rebuild bool, timeout time.Duration) error {
	f, err := os.Open(file) //nolint:gosec // G304: path is an operator-supplied flag
	if err != nil {
		return fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	client := &http.Client{Timeout: timeout}

	var seeded, skipped int
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			fmt.Fprintf(os.Stderr, "line %d: invalid json, skipping\n", line)
			skipped++
			continue
		}
		if err := post(client, addr+"/api/v1/alerts", raw); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		seeded++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}

	fmt.Printf("seeded %d alerts (%d skipped)\n", seeded, skipped)

	if rebuild {
		if err := post(client, addr+"/api/v1/incidents/rebuild", nil); err != nil {
			return fmt.Errorf("rebuild: %w", err)
		}
		fmt.Println("rebuild triggered")
	}
	return nil
}

func post(client *http.Client, url string, body []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: server returned %d: %s", url, resp.StatusCode, bytes.TrimSpace(msg))
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
