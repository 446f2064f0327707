package main

import (
	"fmt"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const baseURL = "http://localhost:8080"

var client *http.Client

func main() {
	// Wait for server to start
	time.Sleep(2 * time.Second)

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Fatalf("cookie jar: %v", err)
	}
	client = &http.Client{
		Jar: jar,
		// Keep redirects visible so the 303s can be asserted.
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	username := fmt.Sprintf("e2e-user-%d", time.Now().UnixNano())
	password := "E2epass1!"

	// 1. Health check
	checkGet("/health", 200)

	// 2. Protected page without a session redirects to login
	checkGet("/", 303)

	// 3. Register
	checkPost("/register", url.Values{
		"username":     {username},
		"password":     {password},
		"confirmation": {password},
	}, 303)

	// 4. Duplicate registration is rejected
	checkPost("/register", url.Values{
		"username":     {username},
		"password":     {password},
		"confirmation": {password},
	}, 403)

	// 5. Log in
	checkPost("/login", url.Values{
		"username": {username},
		"password": {password},
	}, 303)

	// 6. Portfolio, quote form, history all render now
	checkGet("/", 200)
	checkGet("/quote", 200)
	checkGet("/history", 200)

	// 7. Buy one share, then confirm it shows up
	checkPost("/buy", url.Values{"symbol": {"AAPL"}, "shares": {"1"}}, 303)
	checkGet("/", 200)

	// 8. Overselling is rejected
	checkPost("/sell", url.Values{"symbol": {"AAPL"}, "shares": {"100"}}, 403)

	// 9. Log out, protected pages redirect again
	checkGet("/logout", 303)
	checkGet("/history", 303)

	fmt.Println("ALL TESTS PASSED")
}

func checkGet(path string, expectedStatus int) {
	fmt.Printf("Testing GET %s...\n", path)
	resp, err := client.Get(baseURL + path)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		log.Fatalf("GET %s: expected status %d, got %d", path, expectedStatus, resp.StatusCode)
	}
}

func checkPost(path string, form url.Values, expectedStatus int) {
	fmt.Printf("Testing POST %s...\n", path)
	resp, err := client.Post(baseURL+path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		log.Fatalf("POST %s: expected status %d, got %d", path, expectedStatus, resp.StatusCode)
	}
}
