package natalisctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/natalis/natalis/internal/chat"
)

type Options struct {
	BaseURL     string
	ModelAPIKey string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Stdout      io.Writer
	Stderr      io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("natalisctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "natalis API base URL")
	modelKey := fs.String("model-api-key", defaults.ModelAPIKey, "language model API key sent with translate and ask")
	sessionID := fs.String("session", "", "session id for ask and history; ask starts a new session when empty")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 2*time.Minute), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}
	c := &caller{client: client, baseURL: strings.TrimRight(*baseURL, "/"), modelKey: strings.TrimSpace(*modelKey)}

	command := strings.TrimSpace(fs.Arg(0))
	question := strings.TrimSpace(strings.Join(fs.Args()[1:], " "))

	var (
		code int
		body []byte
		err  error
	)
	switch command {
	case "health":
		code, body, err = c.do(ctx, http.MethodGet, "/v1/health", nil)
	case "ready":
		code, body, err = c.do(ctx, http.MethodGet, "/v1/ready", nil)
	case "schema":
		code, body, err = c.do(ctx, http.MethodGet, "/v1/schema", nil)
	case "session":
		code, body, err = c.do(ctx, http.MethodPost, "/v1/sessions", nil)
	case "history":
		if strings.TrimSpace(*sessionID) == "" {
			_, _ = fmt.Fprintln(stderr, "history requires -session")
			return 2
		}
		code, body, err = c.do(ctx, http.MethodGet, "/v1/sessions/"+url.PathEscape(strings.TrimSpace(*sessionID)), nil)
	case "translate":
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "translate requires a question")
			return 2
		}
		code, body, err = c.do(ctx, http.MethodPost, "/v1/query/translate", map[string]string{"question": question})
	case "ask":
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "ask requires a question")
			return 2
		}
		id := strings.TrimSpace(*sessionID)
		if id == "" {
			id, err = c.createSession(ctx)
			if err != nil {
				_, _ = fmt.Fprintf(stderr, "create session: %v\n", err)
				return 1
			}
			_, _ = fmt.Fprintf(stderr, "session %s\n", id)
		}
		code, body, err = c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(id)+"/turns", map[string]string{"question": question})
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}

	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(body)))
		return 1
	}

	if command == "ask" {
		if rendered, ok := renderTurn(body); ok {
			_, _ = fmt.Fprint(stdout, rendered)
			return 0
		}
	}
	if pretty, ok := prettyJSON(body); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(body) > 0 {
		_, _ = fmt.Fprintln(stdout, string(body))
	}
	return 0
}

type caller struct {
	client   *http.Client
	baseURL  string
	modelKey string
}

func (c *caller) createSession(ctx context.Context) (string, error) {
	code, body, err := c.do(ctx, http.MethodPost, "/v1/sessions", nil)
	if err != nil {
		return "", err
	}
	if code != http.StatusCreated {
		return "", fmt.Errorf("http %d: %s", code, strings.TrimSpace(string(body)))
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode session: %w", err)
	}
	if created.SessionID == "" {
		return "", fmt.Errorf("response carried no session_id")
	}
	return created.SessionID, nil
}

func (c *caller) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.modelKey != "" {
		req.Header.Set("X-Model-API-Key", c.modelKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

// renderTurn prints an assistant reply the way a chat client would lay it
// out: explanation, then SQL, table and chart when present.
func renderTurn(raw []byte) (string, bool) {
	var reply struct {
		Turn *chat.Turn `json:"turn"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil || reply.Turn == nil {
		return "", false
	}
	turn := reply.Turn

	var b strings.Builder
	b.WriteString(strings.TrimSpace(turn.Text))
	b.WriteString("\n")
	if turn.SQL != "" {
		fmt.Fprintf(&b, "\nSQL:\n%s\n", turn.SQL)
	}
	if turn.Table != nil {
		fmt.Fprintf(&b, "\n%s\n", turn.Table.Format())
	}
	if turn.Chart != nil {
		fmt.Fprintf(&b, "\nChart: %s (%s, x=%s, y=%s)\n", turn.Chart.Title, turn.Chart.Kind, turn.Chart.X, turn.Chart.Y)
	}
	return b.String(), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: natalisctl [flags] <command> [question]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health               GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready                GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema               GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  session              POST /v1/sessions")
	_, _ = fmt.Fprintln(w, "  history              GET /v1/sessions/{id}")
	_, _ = fmt.Fprintln(w, "  translate <question> POST /v1/query/translate")
	_, _ = fmt.Fprintln(w, "  ask <question>       POST /v1/sessions/{id}/turns")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
