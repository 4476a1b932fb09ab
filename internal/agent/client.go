package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zaqqye/examguard/internal/models"
)

// Client talks to the exam server's student surface.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SessionInfo is the server's answer to a redeemed access code.
type SessionInfo struct {
	SessionID   string     `json:"sessionId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	AllowedURLs []string   `json:"allowedUrls"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

// AttemptInfo describes the attempt created for this client.
type AttemptInfo struct {
	AttemptID   string     `json:"attemptId"`
	SessionID   string     `json:"sessionId"`
	SessionName string     `json:"sessionName"`
	AllowedURLs []string   `json:"allowedUrls"`
	StartedAt   time.Time  `json:"startedAt"`
	EndTime     *time.Time `json:"endTime"`
}

// AttemptStatus is the poll-based terminate fallback.
type AttemptStatus struct {
	Status          string     `json:"status"`
	ShouldTerminate bool       `json:"shouldTerminate"`
	EndTime         *time.Time `json:"endTime"`
}

type serverError struct {
	Error string `json:"error"`
}

func (c *Client) post(path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, path, out)
}

func (c *Client) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, path, out)
}

func (c *Client) decode(resp *http.Response, path string, out any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		var se serverError
		if json.Unmarshal(data, &se) == nil && se.Error != "" {
			return fmt.Errorf("%s: %s", path, se.Error)
		}
		return fmt.Errorf("%s: status %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// ValidateCode redeems an access code for its session details.
func (c *Client) ValidateCode(code string) (*SessionInfo, error) {
	var info SessionInfo
	err := c.post("/api/student/validate-code", map[string]string{"code": code}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// StartAttempt registers this client as an active attempt.
func (c *Client) StartAttempt(sessionID, studentName, studentID string) (*AttemptInfo, error) {
	var info AttemptInfo
	err := c.post("/api/student/start-attempt", map[string]string{
		"sessionId":   sessionID,
		"studentName": studentName,
		"studentId":   studentID,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// ReportViolation forwards one classified violation.
func (c *Client) ReportViolation(attemptID string, vtype models.ViolationType, description, details string) error {
	return c.post("/api/student/report-violation", map[string]any{
		"attemptId": attemptID,
		"violation": map[string]string{
			"type":        string(vtype),
			"description": description,
			"details":     details,
		},
	}, nil)
}

// EndAttempt reports the attempt finished with the given reason.
func (c *Client) EndAttempt(attemptID, reason string) error {
	return c.post("/api/student/end-attempt", map[string]string{
		"attemptId": attemptID,
		"reason":    reason,
	}, nil)
}

// Heartbeat signals liveness to the proctor view.
func (c *Client) Heartbeat(attemptID string) error {
	return c.post("/api/student/heartbeat", map[string]string{"attemptId": attemptID}, nil)
}

// Status polls for the server's verdict on this attempt.
func (c *Client) Status(attemptID string) (*AttemptStatus, error) {
	var st AttemptStatus
	if err := c.get("/api/student/attempt/"+url.PathEscape(attemptID)+"/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// DialAgent opens the push channel over which the server delivers terminate
// orders for this attempt.
func (c *Client) DialAgent(attemptID string) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/api/ws/agent"
	u.RawQuery = url.Values{"attempt_id": {attemptID}}.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial agent socket: %w", err)
	}
	return conn, nil
}
