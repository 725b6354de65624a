package datastore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/eurodeo/esoh/internal/metrics"
	"github.com/eurodeo/esoh/internal/resilience"
)

const (
	serviceName = "datastore.Datastore"

	methodPutObservations = "/" + serviceName + "/PutObservations"
	methodGetObservations = "/" + serviceName + "/GetObservations"
	methodGetTSAttrGroups = "/" + serviceName + "/GetTSAttrGroups"
	methodGetExtents      = "/" + serviceName + "/GetExtents"
)

// DefaultTimeout is the fixed per-RPC deadline.
const DefaultTimeout = 30 * time.Second

// Config holds datastore client configuration.
type Config struct {
	Host string
	Port int

	// Target overrides Host and Port, e.g. "passthrough:///bufnet".
	Target string

	// Timeout is the deadline of each attempt, on top of the caller's
	// context. Retries get a fresh deadline.
	Timeout time.Duration

	Retry resilience.RetryConfig

	// DialOptions are appended after the client's own options.
	DialOptions []grpc.DialOption

	Logger zerolog.Logger
}

// Client is a long-lived handle on the store. It is safe for concurrent use.
type Client struct {
	conn   *grpc.ClientConn
	policy *resilience.Policy
	logger zerolog.Logger
}

// NewClient creates the shared channel to the store. The connection is
// established lazily on first use.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Name == "" {
		cfg.Retry.Name = "datastore"
	}
	cfg.Retry.AttemptTimeout = cfg.Timeout

	target := cfg.Target
	if target == "" {
		target = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	policy := resilience.NewPolicy(cfg.Retry)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(Codec{})),
		grpc.WithChainUnaryInterceptor(policy.UnaryClientInterceptor()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial datastore %s: %w", target, err)
	}

	cfg.Logger.Info().
		Str("target", target).
		Dur("timeout", cfg.Timeout).
		Uint64("max_attempts", cfg.Retry.MaxAttempts).
		Msg("datastore client created")

	return &Client{
		conn:   conn,
		policy: policy,
		logger: cfg.Logger,
	}, nil
}

// Close tears down the channel.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Policy exposes the retry policy, mostly for health reporting.
func (c *Client) Policy() *resilience.Policy {
	return c.policy
}

func (c *Client) invoke(ctx context.Context, method string, req, resp message) error {
	start := time.Now()
	err := c.conn.Invoke(ctx, method, req, resp)
	err = wrapError(method, err)
	metrics.ObserveDatastoreCall(method, time.Since(start), errorCode(err))

	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Msg("datastore call failed")
	}
	return err
}

func errorCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return codes.Unknown
}

// PutObservations writes a batch. The store either accepts all of it or
// the call fails.
func (c *Client) PutObservations(ctx context.Context, req *PutObsRequest) (*PutObsResponse, error) {
	resp := new(PutObsResponse)
	if err := c.invoke(ctx, methodPutObservations, req, resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return resp, &Error{Method: methodPutObservations, Code: codes.Unknown, Detail: resp.Error, kind: ErrRejected}
	}
	return resp, nil
}

// GetObservations runs a filtered observation fetch.
func (c *Client) GetObservations(ctx context.Context, req *GetObsRequest) (*GetObsResponse, error) {
	resp := new(GetObsResponse)
	if err := c.invoke(ctx, methodGetObservations, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetTSAttrGroups returns the distinct combinations of the requested
// series attributes.
func (c *Client) GetTSAttrGroups(ctx context.Context, req *GetTSAGRequest) (*GetTSAGResponse, error) {
	resp := new(GetTSAGResponse)
	if err := c.invoke(ctx, methodGetTSAttrGroups, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetExtents returns the spatial and temporal extent of the stored data.
func (c *Client) GetExtents(ctx context.Context) (*GetExtentsResponse, error) {
	resp := new(GetExtentsResponse)
	if err := c.invoke(ctx, methodGetExtents, new(GetExtentsRequest), resp); err != nil {
		return nil, err
	}
	return resp, nil
}
