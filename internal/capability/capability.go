// Package capability resolves optional visuals through an ordered chain of
// providers, falling back when richer assets are missing.
package capability

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/annexlab/cleanroom/internal/config"
)

var (
	// ErrUnavailable is returned by a provider that cannot supply the visual.
	ErrUnavailable = errors.New("capability unavailable")
	// ErrUnknownVisual is returned for names with no configured chain.
	ErrUnknownVisual = errors.New("unknown visual")
)

// Kind says which provider resolved a visual.
type Kind string

const (
	KindLocal    Kind = "local"
	KindRemote   Kind = "remote"
	KindFallback Kind = "fallback"
)

// Visual is a resolved asset.
type Visual struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Location string `json:"location"`
}

// Provider supplies a visual or reports ErrUnavailable.
type Provider interface {
	Resolve(ctx context.Context, name string) (Visual, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, name string) (Visual, error)

func (f ProviderFunc) Resolve(ctx context.Context, name string) (Visual, error) { return f(ctx, name) }

// Chain tries providers in order and returns the first success.
type Chain []Provider

// Resolve walks the chain. Provider errors other than context cancellation
// move on to the next provider; if none succeeds the result wraps
// ErrUnavailable.
func (c Chain) Resolve(ctx context.Context, name string) (Visual, error) {
	var errs []error
	for _, p := range c {
		if err := ctx.Err(); err != nil {
			return Visual{}, err
		}
		v, err := p.Resolve(ctx, name)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Visual{}, err
		}
		errs = append(errs, err)
	}
	return Visual{}, fmt.Errorf("%w: %s: %w", ErrUnavailable, name, errors.Join(errs...))
}

// LocalFile resolves when Path exists in FS. URLPrefix is prepended to the
// path in the returned location.
type LocalFile struct {
	FS        fs.FS
	Path      string
	URLPrefix string
}

func (l LocalFile) Resolve(_ context.Context, name string) (Visual, error) {
	if l.FS == nil || l.Path == "" {
		return Visual{}, ErrUnavailable
	}
	p := strings.TrimPrefix(path.Clean(l.Path), "/")
	info, err := fs.Stat(l.FS, p)
	if err != nil || info.IsDir() {
		return Visual{}, fmt.Errorf("%w: %s not found", ErrUnavailable, p)
	}
	return Visual{Name: name, Kind: KindLocal, Location: l.URLPrefix + p}, nil
}

// RemoteProbe resolves when a HEAD request to URL answers 2xx.
type RemoteProbe struct {
	Client *http.Client
	URL    string
}

// DefaultProbeTimeout bounds a remote probe when the client sets none.
const DefaultProbeTimeout = 5 * time.Second

func (r RemoteProbe) Resolve(ctx context.Context, name string) (Visual, error) {
	if r.URL == "" {
		return Visual{}, ErrUnavailable
	}
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultProbeTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.URL, nil)
	if err != nil {
		return Visual{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Visual{}, ctx.Err()
		}
		return Visual{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Visual{}, fmt.Errorf("%w: %s answered %d", ErrUnavailable, r.URL, resp.StatusCode)
	}
	return Visual{Name: name, Kind: KindRemote, Location: r.URL}, nil
}

// Static always resolves to Value.
type Static struct {
	Value string
}

func (s Static) Resolve(_ context.Context, name string) (Visual, error) {
	if s.Value == "" {
		return Visual{}, ErrUnavailable
	}
	return Visual{Name: name, Kind: KindFallback, Location: s.Value}, nil
}

// Resolver maps visual names to their chains.
type Resolver struct {
	chains map[string]Chain
	names  []string
}

// NewResolver builds a local, remote, fallback chain per configured visual.
// Local paths are looked up in assets and reported under urlPrefix.
func NewResolver(visuals []config.VisualConfig, assets fs.FS, urlPrefix string, client *http.Client) *Resolver {
	r := &Resolver{chains: make(map[string]Chain, len(visuals))}
	for _, v := range visuals {
		var c Chain
		if v.Local != "" {
			c = append(c, LocalFile{FS: assets, Path: v.Local, URLPrefix: urlPrefix})
		}
		if v.Remote != "" {
			c = append(c, RemoteProbe{Client: client, URL: v.Remote})
		}
		if v.Fallback != "" {
			c = append(c, Static{Value: v.Fallback})
		}
		if _, dup := r.chains[v.Name]; !dup {
			r.names = append(r.names, v.Name)
		}
		r.chains[v.Name] = c
	}
	return r
}

// Names lists configured visuals in configuration order.
func (r *Resolver) Names() []string { return r.names }

// Resolve resolves the named visual.
func (r *Resolver) Resolve(ctx context.Context, name string) (Visual, error) {
	c, ok := r.chains[name]
	if !ok {
		return Visual{}, fmt.Errorf("%w: %s", ErrUnknownVisual, name)
	}
	return c.Resolve(ctx, name)
}
