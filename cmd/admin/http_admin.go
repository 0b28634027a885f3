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
	rows := fs.Bool("rows", false, "include the rendered cave")
	_ = fs.Parse(args)

	q := url.Values{}
	if *rows {
		q.Set("rows", "1")
	}
	call(http.MethodGet, endpoint(*baseURL, "/v1/state", q), 5*time.Second)
}

func stepCmd(args []string) {
	fs := flag.NewFlagSet("step", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	ticks := fs.Int("ticks", 0, "advance this many ticks")
	grains := fs.Int("grains", 0, "advance to the next multiple of this many grains")
	until := fs.String("until", "", "overflow or blocked")
	rows := fs.Bool("rows", false, "include the rendered cave")
	_ = fs.Parse(args)

	q := url.Values{}
	if *ticks > 0 {
		q.Set("ticks", fmt.Sprint(*ticks))
	}
	if *grains > 0 {
		q.Set("grains", fmt.Sprint(*grains))
	}
	if u := strings.TrimSpace(*until); u != "" {
		q.Set("until", u)
	}
	if *rows {
		q.Set("rows", "1")
	}
	call(http.MethodPost, endpoint(*baseURL, "/v1/step", q), 60*time.Second)
}

func resetCmd(args []string) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	call(http.MethodPost, endpoint(*baseURL, "/v1/reset", nil), 5*time.Second)
}

func endpoint(base, path string, q url.Values) string {
	u := strings.TrimRight(strings.TrimSpace(base), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func call(method, u string, timeout time.Duration) {
	req, _ := http.NewRequest(method, u, nil)
	cl := &http.Client{Timeout: timeout}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Print(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
