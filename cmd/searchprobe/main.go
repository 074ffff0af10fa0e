// Command searchprobe exercises the live search WebSocket. Each client types
// a query one keystroke at a time and checks that only the newest request is
// answered.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	RequestsSent         int64
	ResponsesReceived    int64
	OutOfOrder           int64
	Errors               int64
}

var metrics Metrics

type searchRequest struct {
	Seq    int64  `json:"seq"`
	Search string `json:"search"`
	Page   int    `json:"page"`
}

type searchResponse struct {
	Seq   int64 `json:"seq"`
	Posts *struct {
		Total int64 `json:"total"`
	} `json:"posts"`
	Error string `json:"error"`
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "", "Optional account email; anonymous when empty")
	password := flag.String("password", "password123", "Account password")
	query := flag.String("query", "postgres performance", "Query typed by every client")
	clients := flag.Int("clients", 10, "Number of concurrent clients")
	keystroke := flag.Duration("keystroke", 40*time.Millisecond, "Delay between keystrokes")
	rounds := flag.Int("rounds", 3, "Times each client types the query")
	flag.Parse()

	log.Printf("Live search probe: host=%s clients=%d rounds=%d", *host, *clients, *rounds)

	token := ""
	if *email != "" {
		var err error
		token, err = login(*host, *email, *password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		log.Printf("Logged in as %s", *email)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	stopChan := make(chan struct{})
	go func() {
		<-interrupt
		log.Println("Interrupted")
		close(stopChan)
	}()

	var wg sync.WaitGroup
	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, token, *query, *keystroke, *rounds, stopChan, &wg)
	}
	wg.Wait()

	printMetrics()
}

func login(host, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(fmt.Sprintf("http://%s/auth/login", host), "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}
	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.AccessToken, nil
}

func runClient(host, token, query string, keystroke time.Duration, rounds int, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	u := url.URL{Scheme: "ws", Host: host, Path: "/ws/search"}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	defer func() { _ = conn.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	done := make(chan struct{})
	var lastSeen atomic.Int64
	go func() {
		defer close(done)
		for {
			var msg searchResponse
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			atomic.AddInt64(&metrics.ResponsesReceived, 1)
			if msg.Error != "" {
				atomic.AddInt64(&metrics.Errors, 1)
			}
			if prev := lastSeen.Swap(msg.Seq); msg.Seq <= prev {
				atomic.AddInt64(&metrics.OutOfOrder, 1)
			}
		}
	}()

	var seq int64
	for r := 0; r < rounds; r++ {
		for i := 1; i <= len(query); i++ {
			select {
			case <-stopChan:
				closeConn(conn, done)
				return
			case <-time.After(keystroke):
			}
			seq++
			if err := conn.WriteJSON(searchRequest{Seq: seq, Search: query[:i], Page: 1}); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.RequestsSent, 1)
		}
	}

	// Let the final response arrive.
	time.Sleep(time.Second)
	closeConn(conn, done)
}

func closeConn(conn *websocket.Conn, done <-chan struct{}) {
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func printMetrics() {
	fmt.Println("\nLive search probe results")
	fmt.Println("─────────────────────────")
	fmt.Printf("Connections: %d attempted, %d ok, %d failed\n",
		metrics.ConnectionsAttempted, metrics.ConnectionsSuccess, metrics.ConnectionsFailed)
	fmt.Printf("Requests sent:      %d\n", metrics.RequestsSent)
	fmt.Printf("Responses received: %d\n", metrics.ResponsesReceived)
	fmt.Printf("Out of order:       %d\n", metrics.OutOfOrder)
	fmt.Printf("Errors:             %d\n", metrics.Errors)
	if metrics.RequestsSent > 0 {
		fmt.Printf("Superseded:         %.1f%%\n",
			100*float64(metrics.RequestsSent-metrics.ResponsesReceived)/float64(metrics.RequestsSent))
	}
}
