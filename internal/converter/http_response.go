package converter

// ServiceToHTTP handles conversion of view service results to HTTP responses.
type ServiceToHTTP struct{}

// NewServiceToHTTP creates a new ServiceToHTTP converter.
func NewServiceToHTTP() *ServiceToHTTP {
	return &ServiceToHTTP{}
}

// viewsFetchFailed is the error text callers of GET /views/{slug} expect.
const viewsFetchFailed = "Failed to fetch views"

// ViewsHTTPResponse represents the HTTP response for GET /views/{slug}.
type ViewsHTTPResponse struct {
	Views int64  `json:"views"`
	Error string `json:"error,omitempty"`
}

// ViewResponse builds the GET /views/{slug} body. A non-nil err yields the
// zero-views failure body.
func (c *ServiceToHTTP) ViewResponse(views int64, err error) *ViewsHTTPResponse {
	if err != nil {
		return &ViewsHTTPResponse{Views: 0, Error: viewsFetchFailed}
	}
	return &ViewsHTTPResponse{Views: views}
}

// BatchViewsResponse builds the POST /views body: a flat slug -> views object.
// A nil map is rendered as an empty object.
func (c *ServiceToHTTP) BatchViewsResponse(views map[string]int64) map[string]int64 {
	if views == nil {
		return map[string]int64{}
	}
	return views
}
