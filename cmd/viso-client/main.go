package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/viso/pkg/client"
	"github.com/ternarybob/viso/pkg/models"
)

var (
	serverURL    = flag.String("server", "http://localhost:8085", "Server base URL")
	targetURL    = flag.String("url", "", "URL to visit (required)")
	jobID        = flag.String("job-id", "", "Job id (generated if empty)")
	pollInterval = flag.Duration("interval", 2*time.Second, "Poll interval")
	maxAttempts  = flag.Int("attempts", 50, "Polling budget")
	apiKey       = flag.String("api-key", "", "API key sent in the x-api-key header")
	submitOnly   = flag.Bool("submit-only", false, "Submit without polling")
)

func main() {
	flag.Parse()

	if *targetURL == "" {
		fmt.Fprintln(os.Stderr, "Usage: viso-client -url <target> [-server <base>] [-job-id <id>]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	id := *jobID
	if id == "" {
		id = "job_" + uuid.New().String()
	}

	c := client.New(*serverURL,
		client.WithAPIKey(*apiKey),
		client.WithPollInterval(*pollInterval),
		client.WithMaxAttempts(*maxAttempts),
	)

	// Ctrl+C cancels the poll wait
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ack, err := c.SubmitJob(ctx, id, *targetURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "submission failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("accepted: jobId=%s\n", ack.JobID)

	if *submitOnly {
		return
	}

	result, err := c.PollUntilTerminal(ctx, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "polling aborted: %v\n", err)
		os.Exit(1)
	}

	if result.Record != nil {
		out, _ := json.MarshalIndent(result.Record, "", "  ")
		fmt.Println(string(out))
	}

	switch {
	case result.Exhausted:
		fmt.Printf("did not reach terminal state within %d attempts; the job may still be running\n", result.Attempts)
		os.Exit(3)
	case result.Status == models.StatusErrorChecking:
		fmt.Fprintf(os.Stderr, "status check failed: %s\n", result.CheckError)
		os.Exit(1)
	case result.Status == models.StatusFailed:
		os.Exit(1)
	}
}
