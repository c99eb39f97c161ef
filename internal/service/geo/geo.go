package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"alertcam/internal/model"

	"github.com/hashicorp/go-retryablehttp"
	mx "github.com/oschwald/maxminddb-golang"
)

// ErrLocationUnavailable is returned when no coordinates can be produced.
var ErrLocationUnavailable = errors.New("location unavailable")

// Provider returns the current location of the camera.
type Provider interface {
	Locate(ctx context.Context) (*model.Location, error)
}

// StaticProvider always returns the configured coordinates.
type StaticProvider struct {
	Location model.Location
}

func (p StaticProvider) Locate(ctx context.Context) (*model.Location, error) {
	loc := p.Location
	return &loc, nil
}

// Chain asks each provider in turn and returns the first location found.
type Chain []Provider

func (c Chain) Locate(ctx context.Context) (*model.Location, error) {
	var errs []error
	for _, p := range c {
		loc, err := p.Locate(ctx)
		if err == nil && loc != nil {
			return loc, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, errors.Join(errs...))
}

// IPResolver discovers the public IP address of the host.
type IPResolver interface {
	PublicIP(ctx context.Context) (net.IP, error)
}

// FixedIP is an IPResolver for a pinned address.
type FixedIP string

func (f FixedIP) PublicIP(ctx context.Context) (net.IP, error) {
	ip := net.ParseIP(strings.TrimSpace(string(f)))
	if ip == nil {
		return nil, fmt.Errorf("invalid ip %q", string(f))
	}
	return ip, nil
}

// HTTPIPResolver asks a "what is my IP" endpoint that answers with the
// address as plain text.
type HTTPIPResolver struct {
	url    string
	client *http.Client
}

func NewHTTPIPResolver(url string, timeout time.Duration) *HTTPIPResolver {
	rC := retryablehttp.NewClient()
	rC.Logger = nil
	rC.RetryMax = 2
	rC.RetryWaitMin = 100 * time.Millisecond
	rC.RetryWaitMax = time.Second
	client := rC.StandardClient()
	client.Timeout = timeout

	return &HTTPIPResolver{url: url, client: client}
}

func (r *HTTPIPResolver) PublicIP(ctx context.Context) (net.IP, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to query %s: %w", r.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unable to query %s: status %d", r.url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return nil, err
	}
	return FixedIP(body).PublicIP(ctx)
}

type dbRecord struct {
	Location struct {
		Lat *float64 `maxminddb:"latitude"`
		Lng *float64 `maxminddb:"longitude"`
	} `maxminddb:"location"`
}

// MaxMindProvider geolocates the public IP of the host with a GeoIP2 or
// GeoLite2 City database. The resolved IP is cached for CacheTTL.
type MaxMindProvider struct {
	db       *mx.Reader
	resolver IPResolver
	CacheTTL time.Duration

	mu         sync.Mutex
	ip         net.IP
	resolvedAt time.Time
	now        func() time.Time
}

// OpenMaxMind opens the database at path.
func OpenMaxMind(path string, resolver IPResolver) (*MaxMindProvider, error) {
	db, err := mx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open geoip database: %w", err)
	}
	return &MaxMindProvider{db: db, resolver: resolver, CacheTTL: time.Hour, now: time.Now}, nil
}

func (p *MaxMindProvider) Locate(ctx context.Context) (*model.Location, error) {
	ip, err := p.publicIP(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	return p.Lookup(ip)
}

// Lookup returns the coordinates recorded for ip.
func (p *MaxMindProvider) Lookup(ip net.IP) (*model.Location, error) {
	var rec dbRecord
	if err := p.db.Lookup(ip, &rec); err != nil {
		return nil, fmt.Errorf("unable to lookup ip(%s): %w", ip, err)
	}
	if rec.Location.Lat == nil || rec.Location.Lng == nil {
		return nil, fmt.Errorf("%w: no coordinates for ip(%s)", ErrLocationUnavailable, ip)
	}
	return &model.Location{Latitude: *rec.Location.Lat, Longitude: *rec.Location.Lng}, nil
}

func (p *MaxMindProvider) publicIP(ctx context.Context) (net.IP, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ip != nil && p.now().Sub(p.resolvedAt) < p.CacheTTL {
		return p.ip, nil
	}
	ip, err := p.resolver.PublicIP(ctx)
	if err != nil {
		return nil, err
	}
	p.ip, p.resolvedAt = ip, p.now()
	return ip, nil
}

// Close releases the database.
func (p *MaxMindProvider) Close() error {
	return p.db.Close()
}
