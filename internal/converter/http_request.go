// Package converter turns HTTP requests into view service calls and service
// results into HTTP response bodies.
package converter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies; a batch of a few hundred slugs fits easily.
const maxBodyBytes = 64 << 10

// Request errors. Their messages are written verbatim as plain-text 400 bodies.
var (
	ErrNotJSON        = errors.New("must be json")
	ErrSlugNotFound   = errors.New("Slug not found")
	ErrInvalidJSON    = errors.New("Invalid JSON body")
	ErrInvalidSlugs   = errors.New("Missing or invalid 'slugs' array in body")
	ErrSlugParamEmpty = errors.New("Slug parameter is required")
)

// HTTPToService handles conversion of HTTP requests to view service arguments.
type HTTPToService struct {
	clientAddressHeader string
}

// NewHTTPToService creates a new HTTPToService converter. clientAddressHeader
// names the header holding the client network address.
func NewHTTPToService(clientAddressHeader string) *HTTPToService {
	return &HTTPToService{clientAddressHeader: clientAddressHeader}
}

// IncrHTTPRequest represents the HTTP request body for POST /incr.
// Fields are decoded loosely so that wrongly-typed values can be treated as absent.
type IncrHTTPRequest struct {
	Slug interface{} `json:"slug"`
	Col  interface{} `json:"col,omitempty"`
}

// BatchViewsHTTPRequest represents the HTTP request body for POST /views.
type BatchViewsHTTPRequest struct {
	Slugs      json.RawMessage `json:"slugs"`
	Collection interface{}     `json:"collection,omitempty"`
}

// RecordViewArgs are the arguments of ViewService.RecordView.
type RecordViewArgs struct {
	Collection    string
	Slug          string
	ClientAddress string
}

// GetViewArgs are the arguments of ViewService.GetView.
type GetViewArgs struct {
	Collection string
	Slug       string
}

// GetViewsBatchArgs are the arguments of ViewService.GetViewsBatch.
type GetViewsBatchArgs struct {
	Collection string
	Slugs      []string
}

// RecordViewRequest converts POST /incr into RecordView arguments.
// An empty Collection means the service default.
func (c *HTTPToService) RecordViewRequest(r *http.Request) (*RecordViewArgs, error) {
	if r.Header.Get("Content-Type") != "application/json" {
		return nil, ErrNotJSON
	}

	var httpReq IncrHTTPRequest
	if err := decodeBody(r, &httpReq); err != nil {
		return nil, ErrInvalidJSON
	}

	slug, _ := httpReq.Slug.(string)
	if slug == "" {
		return nil, ErrSlugNotFound
	}
	col, _ := httpReq.Col.(string)

	return &RecordViewArgs{
		Collection:    col,
		Slug:          slug,
		ClientAddress: r.Header.Get(c.clientAddressHeader),
	}, nil
}

// GetViewRequest converts GET /views/{slug}?col= into GetView arguments.
func (c *HTTPToService) GetViewRequest(r *http.Request) (*GetViewArgs, error) {
	slug := mux.Vars(r)["slug"]
	if slug == "" {
		return nil, ErrSlugParamEmpty
	}

	return &GetViewArgs{
		Collection: strings.TrimSpace(r.URL.Query().Get("col")),
		Slug:       slug,
	}, nil
}

// GetViewsBatchRequest converts POST /views into GetViewsBatch arguments.
// Entries of slugs that are not strings are dropped here; the service drops
// the remaining malformed ones.
func (c *HTTPToService) GetViewsBatchRequest(r *http.Request) (*GetViewsBatchArgs, error) {
	var httpReq BatchViewsHTTPRequest
	if err := decodeBody(r, &httpReq); err != nil {
		return nil, ErrInvalidJSON
	}

	var raw []interface{}
	if len(httpReq.Slugs) == 0 || json.Unmarshal(httpReq.Slugs, &raw) != nil || len(raw) == 0 {
		return nil, ErrInvalidSlugs
	}

	slugs := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			slugs = append(slugs, s)
		}
	}

	collection, _ := httpReq.Collection.(string)

	return &GetViewsBatchArgs{
		Collection: collection,
		Slugs:      slugs,
	}, nil
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	return json.Unmarshal(body, dst)
}
