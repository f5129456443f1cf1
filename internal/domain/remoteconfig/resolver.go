package remoteconfig

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/GriffinCanCode/bubblegate/internal/domain/attribution"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/config"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/bubblegate/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/bubblegate/internal/providers/http/client"
	"github.com/GriffinCanCode/bubblegate/internal/shared/id"
	"github.com/GriffinCanCode/bubblegate/internal/shared/types"
	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Request is everything attached to a config fetch besides the attribution payload
type Request struct {
	Attribution       attribution.Payload
	DeviceID          string
	BundleID          string
	OS                string
	StoreID           string
	Locale            string
	PushToken         string
	FirebaseProjectID string
}

// Body builds the JSON body: the attribution keys plus the device fields
func (r Request) Body() map[string]any {
	body := r.Attribution.Map()
	body["af_id"] = r.DeviceID
	body["bundle_id"] = r.BundleID
	body["os"] = r.OS
	body["store_id"] = r.StoreID
	body["locale"] = r.Locale
	body["push_token"] = r.PushToken
	body["firebase_project_id"] = r.FirebaseProjectID
	return body
}

// Resolver fetches the remote display config and the delayed organic attribution
type Resolver struct {
	http     *client.Client
	endpoint config.EndpointConfig
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	now      func() time.Time
}

// Fetcher is the resolver surface the phase controller depends on
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*types.RemoteConfig, error)
	FetchOrganicAttribution(ctx context.Context, deviceID string) (attribution.Payload, error)
}

// New creates a resolver; a nil client gets one built from the endpoint timeout
func New(httpClient *client.Client, endpoint config.EndpointConfig, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if httpClient == nil {
		opts := client.DefaultOptions()
		opts.Name = "remote-config"
		opts.Timeout = endpoint.FetchTimeout
		opts.IsSuccessful = expected
		httpClient = client.NewClient(opts)
	}
	return &Resolver{
		http:     httpClient,
		endpoint: endpoint,
		logger:   logger,
		now:      time.Now,
	}
}

// WithMetrics attaches a metrics collector
func (r *Resolver) WithMetrics(m *monitoring.Metrics) *Resolver {
	r.metrics = m
	return r
}

// WithTracer attaches a tracer; fetches then carry trace headers
func (r *Resolver) WithTracer(t *tracing.Tracer) *Resolver {
	r.tracer = t
	return r
}

// StoreID returns the store identifier derived from the app id
func (r *Resolver) StoreID() string {
	return "id" + r.endpoint.AppID
}

type configResponse struct {
	OK      *bool  `json:"ok"`
	URL     string `json:"url"`
	Expires any    `json:"expires"`
}

// Fetch issues exactly one POST to the config endpoint
func (r *Resolver) Fetch(ctx context.Context, req Request) (*types.RemoteConfig, error) {
	const op = "fetch config"
	start := time.Now()
	requestID := id.NewRequestID()

	ctx, finish := r.span(ctx, "config.fetch")
	cfg, err := r.fetch(ctx, op, requestID, req)
	finish(err)

	result := "ok"
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			result = fe.Kind.String()
		} else {
			result = "error"
		}
		r.logger.Warn("config fetch failed",
			zap.String("request_id", requestID.String()),
			zap.Error(err))
	} else {
		r.logger.Info("config fetched",
			zap.String("request_id", requestID.String()),
			zap.String("url", cfg.URL),
			zap.Time("expires_at", cfg.ExpiresAt))
	}
	if r.metrics != nil {
		r.metrics.RecordConfigFetch(result, time.Since(start))
	}
	return cfg, err
}

func (r *Resolver) fetch(ctx context.Context, op string, requestID id.RequestID, req Request) (*types.RemoteConfig, error) {
	endpoint := strings.TrimRight(r.endpoint.ConfigURL, "/") + "/config"

	// Every fetch reaches the network; the breaker only guards the organic lookup
	httpReq, err := r.http.Attempt(ctx)
	if err != nil {
		return nil, &FetchError{Op: op, Kind: KindNetwork, Err: err}
	}
	r.injectTrace(ctx, httpReq)

	body, err := sonic.Marshal(req.Body())
	if err != nil {
		return nil, &FetchError{Op: op, Kind: KindMalformed, Err: err}
	}

	var parsed configResponse
	err = func() error {
		resp, err := httpReq.
			SetHeader("Content-Type", "application/json").
			SetHeader("X-Request-ID", requestID.String()).
			SetBody(body).
			Post(endpoint)
		if err != nil {
			return &FetchError{Op: op, Kind: KindNetwork, Err: err}
		}
		if !resp.IsSuccess() {
			return &FetchError{Op: op, Kind: KindStatus, StatusCode: resp.StatusCode()}
		}
		if err := sonic.Unmarshal(resp.Body(), &parsed); err != nil {
			return &FetchError{Op: op, Kind: KindMalformed, StatusCode: resp.StatusCode(), Err: err}
		}
		return nil
	}()
	if err != nil {
		return nil, err
	}

	if parsed.OK == nil || !*parsed.OK {
		return nil, &FetchError{Op: op, Kind: KindDeclined}
	}
	u, perr := url.Parse(parsed.URL)
	if parsed.URL == "" || perr != nil || u.Scheme == "" || u.Host == "" {
		return nil, &FetchError{Op: op, Kind: KindMalformed, Err: fmt.Errorf("invalid url %q", parsed.URL)}
	}

	expires, ok := parseExpires(parsed.Expires)
	if !ok {
		return nil, &FetchError{Op: op, Kind: KindMalformed, Err: fmt.Errorf("invalid expires %v", parsed.Expires)}
	}
	return &types.RemoteConfig{URL: parsed.URL, ExpiresAt: expires, FetchedAt: r.now().UTC()}, nil
}

// FetchOrganicAttribution asks the attribution service for the install record
func (r *Resolver) FetchOrganicAttribution(ctx context.Context, deviceID string) (attribution.Payload, error) {
	const op = "fetch organic attribution"
	endpoint := fmt.Sprintf("%s/install_data/v4.0/id%s",
		strings.TrimRight(r.endpoint.AttributionURL, "/"), r.endpoint.AppID)

	ctx, finish := r.span(ctx, "attribution.fetch")
	payload, err := r.fetchOrganic(ctx, op, endpoint, deviceID)
	finish(err)

	if err != nil {
		r.logger.Warn("organic attribution lookup failed", zap.Error(err))
	}
	return payload, err
}

func (r *Resolver) fetchOrganic(ctx context.Context, op, endpoint, deviceID string) (attribution.Payload, error) {
	httpReq, err := r.http.Request(ctx)
	if err != nil {
		return attribution.Payload{}, &FetchError{Op: op, Kind: KindNetwork, Err: err}
	}
	r.injectTrace(ctx, httpReq)

	var raw map[string]any
	_, err = r.http.Execute(func() (*resty.Response, error) {
		resp, err := httpReq.
			SetHeader("Accept", "application/json").
			SetQueryParam("devkey", r.endpoint.DevKey).
			SetQueryParam("device_id", deviceID).
			Get(endpoint)
		if err != nil {
			return nil, &FetchError{Op: op, Kind: KindNetwork, Err: err}
		}
		if !resp.IsSuccess() {
			return resp, &FetchError{Op: op, Kind: KindStatus, StatusCode: resp.StatusCode()}
		}
		if err := sonic.Unmarshal(resp.Body(), &raw); err != nil || raw == nil {
			return resp, &FetchError{Op: op, Kind: KindMalformed, StatusCode: resp.StatusCode(), Err: err}
		}
		return resp, nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return attribution.Payload{}, err
		}
		return attribution.Payload{}, &FetchError{Op: op, Kind: KindNetwork, Err: err}
	}
	return attribution.FromMap(raw), nil
}

func (r *Resolver) span(ctx context.Context, name string) (context.Context, func(error)) {
	if r.tracer == nil {
		return ctx, func(error) {}
	}
	span, ctx := r.tracer.StartSpan(ctx, name)
	span.SetTag("span.kind", "client")
	return ctx, func(err error) {
		if err != nil {
			span.SetError(err)
			var fe *FetchError
			if errors.As(err, &fe) && fe.StatusCode != 0 {
				span.SetStatus(fe.StatusCode)
			}
		}
		span.Finish()
		r.tracer.Submit(span)
	}
}

func (r *Resolver) injectTrace(ctx context.Context, req *resty.Request) {
	headers := make(map[string]string, 2)
	tracing.InjectTraceContext(ctx, headers)
	req.SetHeaders(headers)
}

// parseExpires accepts unix seconds as a JSON number or numeric string
func parseExpires(v any) (time.Time, bool) {
	var secs float64
	switch t := v.(type) {
	case float64:
		secs = t
	case int64:
		secs = float64(t)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return time.Time{}, false
		}
		secs = f
	default:
		return time.Time{}, false
	}
	if secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(int64(secs), 0).UTC(), true
}
