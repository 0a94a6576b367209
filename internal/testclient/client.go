// Package testclient drives the trivia server over HTTP and WebSocket from
// tests.
package testclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const defaultTimeout = 2 * time.Second

// Frame is one decoded server frame.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode unmarshals the frame payload into v.
func (f Frame) Decode(v interface{}) error {
	if len(f.Data) == 0 {
		return fmt.Errorf("%s frame has no data", f.Event)
	}
	return json.Unmarshal(f.Data, v)
}

type TestClient struct {
	baseURL string
	client  *http.Client
}

func NewTestClient(baseURL string) *TestClient {
	return &TestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (tc *TestClient) Get(path string) (*http.Response, error) {
	return tc.client.Get(tc.baseURL + path)
}

// GetJSON fetches path and decodes the body into target. Responses with a
// status of 400 or above are returned as errors carrying the status code.
func (tc *TestClient) GetJSON(path string, target interface{}) error {
	resp, err := tc.Get(path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	return json.Unmarshal(body, target)
}

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Dial opens a WebSocket connection to the server's /ws endpoint.
func (tc *TestClient) Dial() (*Conn, error) {
	url := "ws" + strings.TrimPrefix(tc.baseURL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Conn{ws: ws, Timeout: defaultTimeout}, nil
}

// Conn is a player connection speaking the event frame protocol.
type Conn struct {
	ws      *websocket.Conn
	Timeout time.Duration
}

func (c *Conn) Send(event string, data interface{}) error {
	frame := map[string]interface{}{"event": event}
	if data != nil {
		frame["data"] = data
	}
	return c.ws.WriteJSON(frame)
}

// SendRaw writes text as-is.
func (c *Conn) SendRaw(text string) error {
	return c.ws.WriteMessage(websocket.TextMessage, []byte(text))
}

func (c *Conn) Next() (Frame, error) {
	var f Frame
	c.ws.SetReadDeadline(time.Now().Add(c.Timeout))
	if err := c.ws.ReadJSON(&f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Expect reads frames until one named event arrives, discarding others.
// When v is non-nil the payload is decoded into it.
func (c *Conn) Expect(event string, v interface{}) (Frame, error) {
	var skipped []string
	for {
		f, err := c.Next()
		if err != nil {
			return Frame{}, fmt.Errorf("waiting for %s (skipped %v): %w", event, skipped, err)
		}
		if f.Event != event {
			skipped = append(skipped, f.Event)
			continue
		}
		if v != nil {
			if err := f.Decode(v); err != nil {
				return f, fmt.Errorf("decode %s: %w", event, err)
			}
		}
		return f, nil
	}
}

func (c *Conn) Close() error {
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.ws.Close()
}
