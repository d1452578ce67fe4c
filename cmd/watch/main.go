// cmd/watch/main.go
//
// Watches a job to its terminal state:
//
//	watch -job <id> [-submit type] [-input '{"k":"v"}']
//
// Needs JOBS_API_URL and either JOBS_API_TOKEN or AUTH_SECRET (to mint a
// short-lived token locally).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"revenue-jobs/internal/auth"
	"revenue-jobs/internal/client"
	"revenue-jobs/internal/entity"
	"revenue-jobs/internal/poller"
)

func main() {
	jobID := flag.String("job", "", "job id to watch")
	submit := flag.String("submit", "", "submit a new job of this type and watch it")
	input := flag.String("input", "", "json input for -submit")
	interval := flag.Duration("interval", 2*time.Second, "poll interval")
	maxAttempts := flag.Int("max-attempts", 150, "polling attempt budget")
	flag.Parse()

	if *jobID == "" && *submit == "" {
		log.Fatal("either -job or -submit is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := envOr("JOBS_API_URL", "http://localhost:8080")
	token := os.Getenv("JOBS_API_TOKEN")
	if token == "" {
		secret := os.Getenv("AUTH_SECRET")
		if secret == "" {
			log.Fatal("set JOBS_API_TOKEN or AUTH_SECRET")
		}
		var err error
		token, err = auth.Token(secret, "watch-cli", 15*time.Minute)
		if err != nil {
			log.Fatalf("token: %v", err)
		}
	}

	c, err := client.New(client.Config{BaseURL: baseURL, Token: token})
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	id := *jobID
	if *submit != "" {
		var in json.RawMessage
		if *input != "" {
			in = json.RawMessage(*input)
		}
		rec, err := c.Submit(ctx, *submit, nil, in)
		if err != nil {
			log.Fatalf("submit: %v", err)
		}
		id = rec.JobID
		log.Printf("submitted job_id=%s type=%s", id, *submit)
	}

	cfg := poller.DefaultConfig()
	cfg.PollInterval = *interval
	cfg.MaxAttempts = *maxAttempts
	cfg.OnStatusUpdate = func(status entity.JobStatus) {
		log.Printf("job_id=%s status=%s", id, status)
	}
	cfg.OnComplete = func(result json.RawMessage) {
		log.Printf("job_id=%s result=%s", id, result)
	}
	cfg.OnError = func(message string) {
		log.Printf("job_id=%s error=%s", id, message)
	}

	p := poller.New(c, cfg)
	p.SetJob(ctx, id)

	select {
	case <-p.Done():
	case <-ctx.Done():
		p.Stop()
		<-p.Done()
	}

	snap := p.Snapshot()
	if !snap.IsComplete() {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
