package gateway

import (
	"context"
	"net/http"
	"regexp"
	"strings"
)

// AuthMode names the headers sent with an attempt.
type AuthMode string

const (
	// AuthToken sends only the session token header.
	AuthToken AuthMode = "token"
	// AuthTokenBearer adds the server key as a Bearer Authorization header.
	AuthTokenBearer AuthMode = "token+auth"
	// AuthBearerOnly sends the Authorization header without a session token.
	AuthBearerOnly AuthMode = "auth-only"
)

// Attempt is one step of a session plan.
type Attempt struct {
	Endpoint string
	Mode     AuthMode
}

var adminSuffix = regexp.MustCompile(`(?i)/admin$`)

var bearerPrefix = regexp.MustCompile(`(?i)^bearer\s`)

// wuzapiBase returns the trimmed server URL and the same URL without a
// trailing /admin segment.
func wuzapiBase(rawURL string) (normalized, base string) {
	normalized = trimBaseURL(rawURL)
	base = adminSuffix.ReplaceAllString(normalized, "")
	return normalized, base
}

// bearerHeader keeps keys that already carry a Bearer prefix as they are.
func bearerHeader(apiKey string) string {
	if bearerPrefix.MatchString(apiKey) {
		return apiKey
	}
	return "Bearer " + apiKey
}

// SessionPlan lists the attempts for a wuzapi session operation ("qr" or
// "connect") in the order they are tried. Deployments differ in whether the
// stored URL points at the admin prefix and whether routes live under /api,
// so every variant is tried with the bare token first and then with the
// Bearer header added.
func SessionPlan(rawURL, op string) []Attempt {
	normalized, base := wuzapiBase(rawURL)
	endpoints := []string{
		base + "/session/" + op,
		normalized + "/admin/session/" + op,
		base + "/api/session/" + op,
	}

	plan := make([]Attempt, 0, len(endpoints)*2)
	for _, endpoint := range endpoints {
		plan = append(plan,
			Attempt{Endpoint: endpoint, Mode: AuthToken},
			Attempt{Endpoint: endpoint, Mode: AuthTokenBearer},
		)
	}
	return plan
}

type sendFunc func(ctx context.Context, attempt Attempt) (*response, error)

// runPlan executes attempts strictly in order and returns the first success.
//
// Consecutive attempts against the same endpoint form one variant. Once all
// of a variant's attempts failed, the plan moves on to the next variant only
// if the failure was a 404 (from the first attempt, or from the last one when
// the first had another status). Any other failure ends the plan with the
// last attempt's error. When every variant ends in 404 the returned error is
// marked exhausted with the list of tried endpoints.
func runPlan(ctx context.Context, plan []Attempt, send sendFunc) (*response, error) {
	var (
		tried      []string
		firstErr   *TransportError
		variantErr error
	)

	for i, attempt := range plan {
		resp, err := send(ctx, attempt)
		if err == nil {
			resp.Endpoint = attempt.Endpoint
			resp.Mode = attempt.Mode
			return resp, nil
		}

		te, ok := asTransportError(err)
		if !ok {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, te
		}
		if firstErr == nil {
			firstErr = te
		}
		variantErr = err

		lastOfVariant := i+1 == len(plan) || plan[i+1].Endpoint != attempt.Endpoint
		if !lastOfVariant {
			continue
		}

		tried = appendEndpoint(tried, attempt.Endpoint)
		status := te.Status
		if status == 0 {
			status = firstErr.Status
		}
		if firstErr.NotFound() || status == http.StatusNotFound {
			firstErr = nil
			continue
		}

		// A status-less retry failure reports the status the variant did
		// answer with; that answer was not a timeout.
		if te.Status == 0 && status != 0 {
			merged := *te
			merged.Status = status
			merged.Timeout = false
			return nil, &merged
		}
		return nil, variantErr
	}

	return nil, &TransportError{
		Status:   http.StatusNotFound,
		Message:  "endpoint not found in any tried variant",
		Endpoint: lastEndpoint(plan),
		Tried:    tried,
	}
}

// exhausted reports whether err came from a plan whose variants all answered 404.
func exhausted(err error) bool {
	te, ok := asTransportError(err)
	return ok && te.NotFound() && len(te.Tried) > 0
}

func appendEndpoint(list []string, endpoint string) []string {
	for _, e := range list {
		if e == endpoint {
			return list
		}
	}
	return append(list, endpoint)
}

func lastEndpoint(plan []Attempt) string {
	if len(plan) == 0 {
		return ""
	}
	return plan[len(plan)-1].Endpoint
}

func hasBearerPrefix(key string) bool {
	return bearerPrefix.MatchString(strings.TrimSpace(key))
}
