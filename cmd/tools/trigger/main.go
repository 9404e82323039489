package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	addr := flag.String("addr", "http://localhost:8080", "server base URL")
	sources := flag.String("sources", "", "comma-separated URLs; empty runs the configured list")
	wait := flag.Bool("wait", false, "poll the job until it finishes")
	flag.Parse()

	adminSecret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
	if adminSecret == "" {
		fmt.Println("Missing ADMIN_SECRET environment variable")
		os.Exit(1)
	}

	body := map[string][]string{"sources": {}}
	for _, s := range strings.Split(*sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			body["sources"] = append(body["sources"], s)
		}
	}
	payload, _ := json.Marshal(body)

	base := strings.TrimRight(*addr, "/")
	resp, err := send(http.MethodPost, base+"/api/v1/admin/runs", adminSecret, payload)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Response Status: %d\n%s\n", resp.status, resp.body)
	if resp.status != http.StatusAccepted {
		os.Exit(1)
	}
	if !*wait {
		return
	}

	var started struct {
		Poll string `json:"poll"`
	}
	if err := json.Unmarshal(resp.body, &started); err != nil || started.Poll == "" {
		fmt.Println("Response has no poll path")
		os.Exit(1)
	}

	for {
		time.Sleep(5 * time.Second)
		resp, err := send(http.MethodGet, base+started.Poll, adminSecret, nil)
		if err != nil {
			fmt.Printf("Error polling job: %v\n", err)
			os.Exit(1)
		}
		var job struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(resp.body, &job); err != nil {
			fmt.Printf("Bad job response: %s\n", resp.body)
			os.Exit(1)
		}
		if job.Status != "running" {
			fmt.Printf("%s\n", resp.body)
			if job.Status != "completed" {
				os.Exit(1)
			}
			return
		}
		fmt.Println("still running...")
	}
}

type response struct {
	status int
	body   []byte
}

func send(method, url, secret string, payload []byte) (response, error) {
	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Secret", secret)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return response{}, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return response{}, err
	}
	return response{status: resp.StatusCode, body: b}, nil
}
