// Command chatcheck signs in as a doctor and walks the messaging endpoints of
// a running server: dashboard, open, focus and optionally send.
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
	"time"

	"github.com/joho/godotenv"
)

type checker struct {
	baseURL string
	token   string
	client  *http.Client
}

func (c *checker) call(method, path string, body interface{}, out interface{}) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, data)
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

type conversation struct {
	Status   string `json:"status"`
	Messages []struct {
		ID         string `json:"id"`
		Content    string `json:"content"`
		Timestamp  string `json:"timestamp"`
		Type       string `json:"type"`
		SenderName string `json:"sender_name"`
		Status     string `json:"status"`
	} `json:"messages"`
	Watermark string `json:"last_message_id"`
	Error     string `json:"error"`
}

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	baseURL := flag.String("url", "http://localhost:8080/api/v1", "API base URL")
	email := flag.String("email", os.Getenv("CHATCHECK_EMAIL"), "doctor email")
	password := flag.String("password", os.Getenv("CHATCHECK_PASSWORD"), "doctor password")
	patient := flag.String("patient", "", "patient user id to open (default: first unread conversation)")
	send := flag.String("send", "", "message to send after opening")
	flag.Parse()

	c := &checker{baseURL: *baseURL, client: &http.Client{Timeout: 15 * time.Second}}

	fmt.Println("=== CHAT CHECK ===")

	// 1. Login (skipped against a demo server without credentials)
	if *email != "" {
		var login struct {
			AccessToken string `json:"access_token"`
		}
		if _, err := c.call(http.MethodPost, "/auth/login", map[string]string{"email": *email, "password": *password}, &login); err != nil {
			log.Fatal("Login failed: ", err)
		}
		c.token = login.AccessToken
		fmt.Println("1. Login successful, got token.")
	} else {
		fmt.Println("1. No credentials given, assuming demo mode.")
	}

	// 2. Who am I
	var me struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Surname string `json:"surname"`
	}
	if _, err := c.call(http.MethodGet, "/me", nil, &me); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("2. Signed in as Dr. %s %s (%s)\n", me.Name, me.Surname, me.ID)

	// 3. Dashboard
	var unread struct {
		Conversations []struct {
			UserID      string `json:"user_id"`
			Name        string `json:"name"`
			Surname     string `json:"surname"`
			UnreadCount int    `json:"unread_count"`
		} `json:"conversations"`
		TotalUnread int `json:"total_unread"`
	}
	if _, err := c.call(http.MethodGet, "/dashboard/unread", nil, &unread); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("3. %d unread message(s) in %d conversation(s)\n", unread.TotalUnread, len(unread.Conversations))
	for _, u := range unread.Conversations {
		fmt.Printf("   - %s %s: %d\n", u.Name, u.Surname, u.UnreadCount)
	}

	target := *patient
	if target == "" && len(unread.Conversations) > 0 {
		target = unread.Conversations[0].UserID
	}
	if target == "" {
		fmt.Println("Nothing to open, done.")
		return
	}

	// 4. Open
	var conv conversation
	if _, err := c.call(http.MethodPost, "/chat/open", map[string]string{"patient_user_id": target}, &conv); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("4. Opened conversation: %d message(s), watermark %q\n", len(conv.Messages), conv.Watermark)
	for _, m := range conv.Messages {
		fmt.Printf("   [%s] %-12s %-8s %s\n", m.Timestamp, m.SenderName, m.Type, m.Content)
	}

	// 5. Send
	if *send != "" {
		var sent struct {
			Message struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"message"`
		}
		if _, err := c.call(http.MethodPost, "/chat/active/messages", map[string]string{"content": *send}, &sent); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("5. Sent message %s (%s)\n", sent.Message.ID, sent.Message.Status)
	}

	// 6. Focus
	if _, err := c.call(http.MethodPost, "/chat/active/focus", nil, &conv); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("6. After focus: %d message(s), status %s\n", len(conv.Messages), conv.Status)

	if _, err := c.call(http.MethodDelete, "/chat/active", nil, nil); err != nil {
		log.Fatal(err)
	}
	fmt.Println("Done.")
}
