// Package graphql sends GraphQL operations to the feed and user services.
// Each operation is routed to exactly one service endpoint.
package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nhle/socialterm/internal/api"
	"github.com/nhle/socialterm/internal/logging"
	"github.com/nhle/socialterm/internal/model"
)

var log = logging.NewNamed("graphql")

// ErrUnknownService is returned when a request resolves to a service with
// no configured endpoint.
var ErrUnknownService = errors.New("graphql: unknown service")

// Doer is the subset of api.Client used to send requests.
type Doer interface {
	Do(
		ctx context.Context,
		method string,
		path string,
		body interface{},
		result interface{},
		opts ...api.RequestOption,
	) error
}

// Request is a single GraphQL operation.
type Request struct {
	OperationName string
	Query         string
	Variables     map[string]interface{}

	// Service forces the target service; empty means route by operation.
	Service string
}

// Error is one entry of a GraphQL "errors" array.
type Error struct {
	Message string        `json:"message"`
	Path    []interface{} `json:"path,omitempty"`
}

// Errors is returned when the response carries a non-empty "errors" array.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

// UserMessage returns the first error message for display.
func (e Errors) UserMessage() string {
	if len(e) == 0 {
		return ""
	}
	return e[0].Message
}

type payload struct {
	OperationName string                 `json:"operationName,omitempty"`
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

// Client routes operations to service endpoints and posts them through the
// HTTP gateway, which supplies the bearer credential.
type Client struct {
	gw Doer

	mu             sync.RWMutex
	endpoints      map[string]string
	operations     map[string]string
	defaultService string
}

// NewClient creates a Client with the routing table from cfg.
func NewClient(gw Doer, cfg model.GraphQLConfig) *Client {
	c := &Client{
		gw:             gw,
		endpoints:      make(map[string]string, len(cfg.Endpoints)),
		operations:     make(map[string]string, len(cfg.Operations)),
		defaultService: strings.ToLower(cfg.DefaultService),
	}
	for svc, url := range cfg.Endpoints {
		c.endpoints[strings.ToLower(svc)] = url
	}
	// Operation names are matched case-insensitively: viper lowercases
	// map keys read from YAML.
	for op, svc := range cfg.Operations {
		c.operations[strings.ToLower(op)] = strings.ToLower(svc)
	}
	return c
}

// SetEndpoint points service at url.
func (c *Client) SetEndpoint(service, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints[strings.ToLower(service)] = url
}

// SetDefaultService changes the service used for unmapped operations.
func (c *Client) SetDefaultService(service string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultService = strings.ToLower(service)
}

// Endpoint resolves the URL a request is sent to: the explicit service,
// else the service mapped to the operation name, else the default.
func (c *Client) Endpoint(req Request) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	svc := strings.ToLower(req.Service)
	if svc == "" {
		svc = c.operations[strings.ToLower(req.OperationName)]
	}
	if svc == "" {
		svc = c.defaultService
	}

	url, ok := c.endpoints[svc]
	if !ok || url == "" {
		return "", fmt.Errorf("%w %q", ErrUnknownService, svc)
	}
	return url, nil
}

// Do sends req and decodes the "data" member of the response into data.
// data may be nil when the caller only needs success or failure.
func (c *Client) Do(ctx context.Context, req Request, data interface{}) error {
	endpoint, err := c.Endpoint(req)
	if err != nil {
		return err
	}

	var resp response
	err = c.gw.Do(ctx, http.MethodPost, endpoint, payload{
		OperationName: req.OperationName,
		Query:         req.Query,
		Variables:     req.Variables,
	}, &resp)
	if err != nil {
		return fmt.Errorf("graphql %s: %w", req.OperationName, err)
	}

	if len(resp.Errors) > 0 {
		log.Warn("operation returned errors",
			zap.String("operation", req.OperationName),
			zap.String("error", resp.Errors.Error()),
		)
		return resp.Errors
	}

	if data == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Data, data); err != nil {
		return fmt.Errorf("%w: decoding %s data: %v", api.ErrMalformedResponse, req.OperationName, err)
	}
	return nil
}
