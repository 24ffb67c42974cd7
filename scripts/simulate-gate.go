package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

var (
	gateURL   = flag.String("gate", "http://localhost:8080", "Gate base URL")
	eventID   = flag.String("event", "", "Event ID (required)")
	numUsers  = flag.Int("users", 300, "Number of users to enqueue")
	pollEvery = flag.Duration("poll", 2*time.Second, "Status poll interval")
	watch     = flag.Bool("watch", false, "Poll statuses until every user leaves the queue")
)

type enqueueResponse struct {
	Status string `json:"status"`
	Rank   int64  `json:"rank"`
}

type statusResponse struct {
	Status string `json:"status"`
	Rank   *int64 `json:"rank,omitempty"`
}

func main() {
	flag.Parse()

	if *eventID == "" {
		fmt.Println("Error: --event flag is required")
		flag.Usage()
		os.Exit(1)
	}

	cli := &http.Client{Timeout: 10 * time.Second}

	fmt.Printf("Enqueueing %d users for event %s...\n", *numUsers, *eventID)
	start := time.Now()

	var enqueued atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < *numUsers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			userID := fmt.Sprintf("demo-user-%d", i+1)
			if err := enqueue(cli, userID); err != nil {
				fmt.Printf("enqueue failed for %s: %v\n", userID, err)
				return
			}
			enqueued.Add(1)
		}(i)
	}
	wg.Wait()

	elapsed := time.Since(start)
	fmt.Printf("Enqueued %d/%d users in %v (%.0f req/sec)\n",
		enqueued.Load(), *numUsers, elapsed, float64(enqueued.Load())/elapsed.Seconds())

	if *watch {
		watchStatuses(cli)
	}
}

func enqueue(cli *http.Client, userID string) error {
	body, _ := json.Marshal(map[string]string{"userId": userID})
	url := fmt.Sprintf("%s/api/v1/events/%s/enqueue", *gateURL, *eventID)

	resp, err := cli.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var out enqueueResponse
	return json.NewDecoder(resp.Body).Decode(&out)
}

func watchStatuses(cli *http.Client) {
	fmt.Printf("Watching queue drain (poll every %v, Ctrl+C to stop)...\n", *pollEvery)

	ticker := time.NewTicker(*pollEvery)
	defer ticker.Stop()

	for range ticker.C {
		var waiting, processing, gone int
		for i := 0; i < *numUsers; i++ {
			userID := fmt.Sprintf("demo-user-%d", i+1)
			switch pollStatus(cli, userID) {
			case "WAITING":
				waiting++
			case "PROCESSING":
				processing++
			default:
				gone++
			}
		}

		fmt.Printf("[%s] Waiting: %d | Processing: %d | Done: %d\n",
			time.Now().Format("15:04:05"), waiting, processing, gone)

		if waiting == 0 && processing == 0 {
			fmt.Println("Queue drained")
			return
		}
	}
}

func pollStatus(cli *http.Client, userID string) string {
	url := fmt.Sprintf("%s/api/v1/events/%s/status?userId=%s", *gateURL, *eventID, userID)

	resp, err := cli.Get(url)
	if err != nil {
		return "UNKNOWN"
	}
	defer resp.Body.Close()

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "UNKNOWN"
	}

	return out.Status
}
