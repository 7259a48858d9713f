package scenario

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// UpsertUserName is the registry name of the write scenario.
const UpsertUserName = "upsert-user"

// User is the payload written by the upsert scenario.
type User struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Age       int    `json:"age"`
}

// DefaultUser is the fixed payload of the upsert scenario.
var DefaultUser = User{FirstName: "jack", LastName: "neverdie", Age: 20}

// upsertTrendStats is the summary the write scenario asks for.
var upsertTrendStats = []string{"min", "med", "avg", "p(90)", "p(95)", "max", "count"}

// UpsertUser builds the write scenario: one authenticated JSON POST of the
// user resource per iteration.
//
// Its thresholds are all "max>=0", which can never fail. They exist so the
// runner breaks latency down per status code and per method in the summary.
func UpsertUser(t Target) (*Scenario, error) {
	t = t.withDefaults()

	u, err := UserURL(t.BaseURL, t.UserID)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(DefaultUser)
	if err != nil {
		return nil, fmt.Errorf("failed to encode user payload: %w", err)
	}

	return &Scenario{
		Name:        UpsertUserName,
		Description: "POST (upsert) a single user resource with a bearer token",
		Options: Options{
			Stages:       defaultStages(),
			MaxRedirects: 1,
			Thresholds: Thresholds{
				"http_req_duration{status:0}":    {"max>=0"},
				"http_req_duration{status:200}":  {"max>=0"},
				"http_req_duration{status:400}":  {"max>=0"},
				"http_req_duration{status:500}":  {"max>=0"},
				"http_req_duration{status:502}":  {"max>=0"},
				"http_req_duration{method:POST}": {"max>=0"},
			},
			SummaryTrendStats:     append([]string(nil), upsertTrendStats...),
			DiscardResponseBodies: true,
		},
		Iteration: Static(RequestSpec{
			Name:   "upsert_user",
			Method: http.MethodPost,
			URL:    u,
			Headers: map[string]string{
				"Content-Type":  "application/json",
				"Authorization": "Bearer " + t.Token,
			},
			Body: body,
		}),
	}, nil
}
