package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type voter struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

type config struct {
	Voters []voter `json:"voters"`
}

type result struct {
	Voter    int
	Status   int
	Body     string
	Error    error
	Duration time.Duration
}

func main() {
	var (
		base       string
		votersPath string
		appID      string
		timeout    time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&votersPath, "voters", filepath.Join("scripts", "vote_sim", "voters.json"), "Path to JSON voters file")
	flag.StringVar(&appID, "app", "", "Application ID to vote on")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if appID == "" {
		log.Fatal("missing -app flag")
	}

	voters, err := loadVoters(votersPath)
	if err != nil {
		log.Fatalf("failed to load voters: %v", err)
	}

	client := &http.Client{Timeout: timeout}
	url := strings.TrimRight(base, "/") + "/api/v1/applications/" + appID + "/votes"

	// All votes fire at once so the per-application serialization and the
	// duplicate-vote guard get exercised under real contention.
	results := make([]result, len(voters))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, v := range voters {
		wg.Add(1)
		go func(idx int, v voter) {
			defer wg.Done()
			<-start
			results[idx] = castVote(client, url, idx, v)
		}(i, v)
	}
	close(start)
	wg.Wait()

	accepted, conflicts, failures := 0, 0, 0
	fmt.Println("Vote Simulation Report")
	fmt.Println("======================")
	for _, res := range results {
		switch {
		case res.Error != nil:
			failures++
			fmt.Printf("[ERROR] voter %d: %v\n", res.Voter, res.Error)
		case res.Status == http.StatusCreated:
			accepted++
			fmt.Printf("[OK]    voter %d: %d (%s)\n", res.Voter, res.Status, res.Duration)
		case res.Status == http.StatusConflict:
			conflicts++
			fmt.Printf("[DUP]   voter %d: %d (%s)\n", res.Voter, res.Status, res.Duration)
		default:
			failures++
			fmt.Printf("[FAIL]  voter %d: %d %s\n", res.Voter, res.Status, res.Body)
		}
	}

	fmt.Printf("Accepted: %d, Conflicts: %d, Failures: %d\n", accepted, conflicts, failures)
	printTally(client, base, appID, voters)
	if failures > 0 {
		os.Exit(1)
	}
}

func loadVoters(path string) ([]voter, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Voters) == 0 {
		return nil, fmt.Errorf("no voters defined in %s", path)
	}
	return cfg.Voters, nil
}

func castVote(client *http.Client, url string, idx int, v voter) result {
	res := result{Voter: idx}

	value := v.Value
	if value == "" {
		value = "approve"
	}
	payload, err := json.Marshal(map[string]string{
		"vote":      value,
		"reasoning": fmt.Sprintf("simulated vote from voter %d", idx),
	})
	if err != nil {
		res.Error = err
		return res
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		res.Error = err
		return res
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.Token)

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Error = err
		return res
	}
	res.Status = resp.StatusCode
	res.Body = strings.TrimSpace(string(body))
	return res
}

func printTally(client *http.Client, base, appID string, voters []voter) {
	if len(voters) == 0 {
		return
	}
	url := strings.TrimRight(base, "/") + "/api/v1/applications/" + appID + "/tally"
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+voters[0].Token)
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("tally fetch failed: %v\n", err)
		return
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	fmt.Printf("Final tally: %s\n", strings.TrimSpace(string(body)))
}
