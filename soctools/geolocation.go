package soctools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/therealnoof/mcp-server-lab/chatmodel"
	"github.com/therealnoof/mcp-server-lab/mcp"
	"github.com/therealnoof/mcp-server-lab/pkg/llmutils"
	"github.com/therealnoof/mcp-server-lab/pkg/schema"
	"github.com/therealnoof/mcp-server-lab/tools"
	"golang.org/x/time/rate"
)

var logger = xlog.NewPackageLogger("github.com/therealnoof/mcp-server-lab", "soctools")

const (
	GeolocationToolName = "lookup_ip_geolocation"

	// DefaultGeoBaseURL is the free ip-api.com endpoint. No API key needed.
	DefaultGeoBaseURL = "http://ip-api.com/json"

	// geoRequestsPerMinute is the free tier limit of ip-api.com.
	geoRequestsPerMinute = 45

	geoRequestTimeout = 10 * time.Second
)

// GeolocationRequest represents the tool input.
type GeolocationRequest struct {
	IPAddress string `json:"ip_address" yaml:"ip_address" jsonschema:"title=ip_address,description=The IPv4 address to look up (e.g. '185.220.101.45'),required"`
}

// GeolocationResult represents the tool output.
type GeolocationResult struct {
	IP           string `json:"ip"`
	Country      string `json:"country,omitempty"`
	Region       string `json:"region,omitempty"`
	City         string `json:"city,omitempty"`
	ISP          string `json:"isp,omitempty"`
	Organization string `json:"organization,omitempty"`
	ASN          string `json:"asn,omitempty"`
	QueriedAt    string `json:"queried_at,omitempty"`
	Error        string `json:"error,omitempty"`
	IsPrivate    bool   `json:"is_private,omitempty"`
}

func (r *GeolocationResult) GetContent() string {
	return llmutils.ToJSON(r)
}

// geoAPIResponse is the ip-api.com response shape.
type geoAPIResponse struct {
	Status     string `json:"status"`
	Country    string `json:"country"`
	RegionName string `json:"regionName"`
	City       string `json:"city"`
	ISP        string `json:"isp"`
	Org        string `json:"org"`
	AS         string `json:"as"`
	Query      string `json:"query"`
}

// Doer executes HTTP requests.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// GeolocationTool looks up geographic and network ownership information for
// an IP address via ip-api.com.
type GeolocationTool struct {
	name        string
	description string
	funcParams  any

	baseURL string
	client  Doer
	limiter *rate.Limiter
	now     func() time.Time
}

var _ tools.Tool[GeolocationRequest, GeolocationResult] = (*GeolocationTool)(nil)

// NewGeolocationTool creates the geolocation tool.
func NewGeolocationTool() (*GeolocationTool, error) {
	sc, err := schema.New(reflect.TypeOf(GeolocationRequest{}))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create schema")
	}
	return &GeolocationTool{
		name: GeolocationToolName,
		description: "Look up geographic and network ownership information for an IP address. " +
			"This provides context about WHERE an IP is located and WHO owns it. " +
			"Useful for identifying if traffic is coming from unexpected countries " +
			"or suspicious hosting providers.",
		funcParams: sc.Parameters,
		baseURL:    DefaultGeoBaseURL,
		client:     &http.Client{Timeout: geoRequestTimeout},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/geoRequestsPerMinute), 1),
		now:        time.Now,
	}, nil
}

// WithBaseURL overrides the geolocation API endpoint.
func (t *GeolocationTool) WithBaseURL(baseURL string) *GeolocationTool {
	t.baseURL = baseURL
	return t
}

// WithHTTPClient overrides the HTTP client.
func (t *GeolocationTool) WithHTTPClient(client Doer) *GeolocationTool {
	t.client = client
	return t
}

func (t *GeolocationTool) Name() string {
	return t.name
}

func (t *GeolocationTool) Description() string {
	return t.description
}

func (t *GeolocationTool) Parameters() any {
	return t.funcParams
}

// Run queries ip-api.com for the address. Private and reserved ranges are
// answered locally without spending the rate budget.
func (t *GeolocationTool) Run(ctx context.Context, req *GeolocationRequest) (*GeolocationResult, error) {
	if addr, err := netip.ParseAddr(req.IPAddress); err == nil {
		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			return &GeolocationResult{
				IP:        req.IPAddress,
				Error:     "Could not geolocate IP - may be private/reserved range",
				IsPrivate: true,
			}, nil
		}
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	reqURL := t.baseURL + "/" + url.PathEscape(req.IPAddress) +
		"?fields=status,country,regionName,city,isp,org,as,query"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "geolocation lookup failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	var data geoAPIResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal response")
	}

	// ip-api.com returns "fail" status for private/reserved IPs
	if data.Status == "fail" {
		return &GeolocationResult{
			IP:        req.IPAddress,
			Error:     "Could not geolocate IP - may be private/reserved range",
			IsPrivate: true,
		}, nil
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"tool", t.name,
		"ip", req.IPAddress,
		"country", data.Country,
	)

	return &GeolocationResult{
		IP:           req.IPAddress,
		Country:      defaultUnknown(data.Country),
		Region:       defaultUnknown(data.RegionName),
		City:         defaultUnknown(data.City),
		ISP:          defaultUnknown(data.ISP),
		Organization: defaultUnknown(data.Org),
		ASN:          defaultUnknown(data.AS),
		QueriedAt:    t.now().UTC().Format(time.RFC3339),
	}, nil
}

func defaultUnknown(val string) string {
	if val == "" {
		return "Unknown"
	}
	return val
}

func (t *GeolocationTool) Call(ctx context.Context, input string) (string, error) {
	var req GeolocationRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return llmutils.ToJSONIndent(out), nil
}

// RegisterMCP registers the tool handler with an MCP server.
func (t *GeolocationTool) RegisterMCP(registrator tools.McpServerRegistrator) error {
	return registrator.RegisterTool(t.name, t.description, func(args GeolocationRequest) (*mcp.ToolResponse, error) {
		out, err := t.Run(context.Background(), &args)
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResponseText(llmutils.ToJSONIndent(out)), nil
	})
}
