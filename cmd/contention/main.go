package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Races many clients for the same seats against a running server and
// checks that at most one of them wins.

type holdResult struct {
	Client       int
	Status       int
	HoldID       string
	ResponseTime time.Duration
	Error        string
}

type apiResponse struct {
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type ContentionSuite struct {
	BaseURL string
	EventID string
	Seats   []string
	Clients int
	client  *http.Client

	mu      sync.Mutex
	Results []holdResult
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080/api/v1", "API base URL")
	eventID := flag.String("event", "evt-arena-opening", "event to contend on")
	seatList := flag.String("seats", "A1,A2", "comma separated seat keys every client requests")
	clients := flag.Int("clients", 50, "number of concurrent clients")
	flag.Parse()

	suite := &ContentionSuite{
		BaseURL: strings.TrimRight(*baseURL, "/"),
		EventID: *eventID,
		Seats:   strings.Split(*seatList, ","),
		Clients: *clients,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	fmt.Println("🧪 Starting Hold Contention Test...")
	fmt.Println("===================================")
	fmt.Printf("   event=%s seats=%v clients=%d\n", suite.EventID, suite.Seats, suite.Clients)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := suite.run(ctx); err != nil {
		log.Fatalf("❌ Contention run failed: %v", err)
	}

	winners := suite.generateReport()
	if winners > 1 {
		fmt.Printf("\n❌ %d clients were granted the same seats\n", winners)
		os.Exit(1)
	}

	// Release the winning hold so the run can be repeated
	for _, r := range suite.Results {
		if r.HoldID != "" {
			if err := suite.release(ctx, r.HoldID); err != nil {
				fmt.Printf("   ⚠️  failed to release %s: %v\n", r.HoldID, err)
			}
		}
	}

	fmt.Println("\n🎉 Hold Contention Test Complete!")
}

func (s *ContentionSuite) run(ctx context.Context) error {
	start := make(chan struct{})
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.Clients; i++ {
		client := i
		g.Go(func() error {
			<-start
			r := s.requestHold(ctx, client)
			s.mu.Lock()
			s.Results = append(s.Results, r)
			s.mu.Unlock()
			return nil
		})
	}
	close(start)
	return g.Wait()
}

func (s *ContentionSuite) requestHold(ctx context.Context, client int) holdResult {
	body, _ := json.Marshal(map[string]interface{}{
		"event_id":  s.EventID,
		"user_id":   "contender-" + uuid.NewString()[:8],
		"seat_keys": s.Seats,
	})

	began := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/seats/hold", bytes.NewReader(body))
	if err != nil {
		return holdResult{Client: client, Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return holdResult{Client: client, ResponseTime: time.Since(began), Error: err.Error()}
	}
	defer resp.Body.Close()

	result := holdResult{Client: client, Status: resp.StatusCode, ResponseTime: time.Since(began)}
	var decoded apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		result.Error = err.Error()
		return result
	}
	if resp.StatusCode == http.StatusCreated {
		var hold struct {
			HoldID string `json:"hold_id"`
		}
		_ = json.Unmarshal(decoded.Data, &hold)
		result.HoldID = hold.HoldID
	} else {
		result.Error = decoded.Message
	}
	return result
}

func (s *ContentionSuite) release(ctx context.Context, holdID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.BaseURL+"/seats/hold/"+holdID, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// generateReport prints the outcome histogram and returns the number of winners
func (s *ContentionSuite) generateReport() int {
	byStatus := map[int]int{}
	var total time.Duration
	winners := 0
	for _, r := range s.Results {
		byStatus[r.Status]++
		total += r.ResponseTime
		if r.HoldID != "" {
			winners++
		}
	}

	statuses := make([]int, 0, len(byStatus))
	for status := range byStatus {
		statuses = append(statuses, status)
	}
	sort.Ints(statuses)

	fmt.Println("\n📊 Contention Report")
	fmt.Println("====================")
	for _, status := range statuses {
		icon := "✅"
		switch {
		case status == 0:
			icon = "💥"
		case status == http.StatusConflict:
			icon = "🔒"
		case status >= 400:
			icon = "❌"
		}
		fmt.Printf("   %s HTTP %d: %d\n", icon, status, byStatus[status])
	}
	if len(s.Results) > 0 {
		fmt.Printf("   ⏱️  mean response time: %v\n", total/time.Duration(len(s.Results)))
	}
	fmt.Printf("   🏆 winners: %d\n", winners)
	return winners
}
