package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	get(strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/state")
}

// killsCmd asks a running server; use "db kills" when it is down.
func killsCmd(args []string) {
	fs := flag.NewFlagSet("kills", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	killer := fs.String("killer", "", "player id (omit for the leaderboard)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	base := strings.TrimRight(strings.TrimSpace(*baseURL), "/")
	q := url.Values{"limit": {fmt.Sprint(*limit)}}
	if strings.TrimSpace(*killer) == "" {
		get(base + "/admin/v1/leaderboard?" + q.Encode())
		return
	}
	q.Set("killer", *killer)
	get(base + "/admin/v1/kills?" + q.Encode())
}

func get(u string) {
	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
