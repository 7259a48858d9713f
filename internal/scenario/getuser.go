package scenario

import "net/http"

// GetUserName is the registry name of the read scenario.
const GetUserName = "get-user"

// GetUser builds the read scenario: one unauthenticated GET of the user
// resource per iteration, gated on the 99th percentile staying under one
// second.
func GetUser(t Target) (*Scenario, error) {
	t = t.withDefaults()

	u, err := UserURL(t.BaseURL, t.UserID)
	if err != nil {
		return nil, err
	}

	return &Scenario{
		Name:        GetUserName,
		Description: "GET a single user resource",
		Options: Options{
			Stages: defaultStages(),
			Thresholds: Thresholds{
				"http_req_duration": {"p(99) < 1000"},
			},
			MaxRedirects: DefaultMaxRedirects,
		},
		Iteration: Static(RequestSpec{
			Name:   "get_user",
			Method: http.MethodGet,
			URL:    u,
		}),
	}, nil
}

// Static returns an IterationFunc that issues the same requests on every
// iteration. Each call hands out copies, so the runner may not alter the
// templates.
func Static(reqs ...RequestSpec) IterationFunc {
	templates := make([]RequestSpec, len(reqs))
	for i, r := range reqs {
		r.Method = normalizeMethod(r.Method)
		templates[i] = r.Clone()
	}

	return func() []RequestSpec {
		out := make([]RequestSpec, len(templates))
		for i, r := range templates {
			out[i] = r.Clone()
		}
		return out
	}
}
