package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"
)

const (
	// DefaultBaseURL is the Canvas instance queried when CANVAS_BASE_URL is not set
	DefaultBaseURL = "https://sdsu.instructure.com"
	// UpcomingWindow is how far ahead the planner feed looks
	UpcomingWindow = 14 * 24 * time.Hour
)

// ErrInvalidToken is returned when Canvas rejects the stored credential.
// The credential is left in place; the user has to save a fresh one.
var ErrInvalidToken = errors.New("canvas rejected the stored token")

// UpstreamError carries a non-2xx Canvas response through to the caller
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("canvas returned %d: %s", e.StatusCode, e.Message)
}

// Assignment is one upcoming planner item of type assignment
type Assignment struct {
	PlannableID    int64      `json:"plannable_id"`
	Name           string     `json:"name"`
	Deadline       *time.Time `json:"deadline"`
	Course         string     `json:"course"`
	Submitted      bool       `json:"submitted"`
	Graded         bool       `json:"graded"`
	PointsPossible float64    `json:"points_possible"`
}

// Client talks to the Canvas planner API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Canvas client using CANVAS_BASE_URL if set
func NewClient() *Client {
	baseURL := os.Getenv("CANVAS_BASE_URL")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// plannerItem mirrors the subset of the Canvas planner response we consume
type plannerItem struct {
	PlannableID   int64  `json:"plannable_id"`
	PlannableType string `json:"plannable_type"`
	ContextName   string `json:"context_name"`
	Plannable     struct {
		Title          string     `json:"title"`
		DueAt          *time.Time `json:"due_at"`
		PointsPossible float64    `json:"points_possible"`
	} `json:"plannable"`
	Submissions plannerSubmissions `json:"submissions"`
}

// plannerSubmissions is an object for assignments but a bare `false` for
// items without a submission, so it needs a tolerant decoder
type plannerSubmissions struct {
	Submitted bool `json:"submitted"`
	Graded    bool `json:"graded"`
}

func (s *plannerSubmissions) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || data[0] != '{' {
		*s = plannerSubmissions{}
		return nil
	}
	type alias plannerSubmissions
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*s = plannerSubmissions(a)
	return nil
}

// UpcomingAssignments fetches planner items due within the upcoming window
// and keeps only those of type assignment
func (c *Client) UpcomingAssignments(ctx context.Context, token string) ([]Assignment, error) {
	now := time.Now().UTC()
	params := url.Values{}
	params.Set("start_date", now.Add(time.Hour).Format(time.RFC3339))
	params.Set("end_date", now.Add(UpcomingWindow).Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/planner/items?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("canvas request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		if body.Message == "" {
			body.Message = http.StatusText(resp.StatusCode)
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Message: body.Message}
	}

	var items []plannerItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode planner items: %w", err)
	}

	assignments := make([]Assignment, 0, len(items))
	for _, item := range items {
		if item.PlannableType != "assignment" {
			continue
		}
		assignments = append(assignments, Assignment{
			PlannableID:    item.PlannableID,
			Name:           item.Plannable.Title,
			Deadline:       item.Plannable.DueAt,
			Course:         item.ContextName,
			Submitted:      item.Submissions.Submitted,
			Graded:         item.Submissions.Graded,
			PointsPossible: item.Plannable.PointsPossible,
		})
	}
	return assignments, nil
}

// FilterPending drops assignments that already have a pending reminder so
// the feed never re-offers them
func FilterPending(assignments []Assignment, pending map[int64]struct{}) []Assignment {
	filtered := make([]Assignment, 0, len(assignments))
	for _, a := range assignments {
		if _, ok := pending[a.PlannableID]; ok {
			continue
		}
		filtered = append(filtered, a)
	}
	return filtered
}
