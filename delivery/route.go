package delivery

import (
	"fmt"
	"maps"
	"net/url"
	"strings"

	"github.com/linanwx/sharebridge/share"
)

// Route is where a target lands on the destination surface.
type Route struct {
	Path    string
	Query   map[string]string
	Payload string // persisted before navigation; empty skips the persist step
}

// Equal reports whether two routes address the same destination with the same payload.
func (r Route) Equal(o Route) bool {
	return r.Path == o.Path && r.Payload == o.Payload && maps.Equal(r.Query, o.Query)
}

// String renders the route as path?query.
func (r Route) String() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	v := url.Values{}
	for k, val := range r.Query {
		v.Set(k, val)
	}
	return r.Path + "?" + v.Encode()
}

// Router maps targets and deep links to destination routes.
type Router struct {
	classifier  share.Classifier
	addRoute    string
	uploadRoute string
}

// NewRouter builds a router for the app described by classifier.
func NewRouter(classifier share.Classifier, addRoute, uploadRoute string) Router {
	return Router{classifier: classifier, addRoute: addRoute, uploadRoute: uploadRoute}
}

// ForTarget routes an extraction result. Internal links are routed as deep
// links; if that fails for a link found inside shared content, the link is
// handed to the add screen like any other URL.
func (r Router) ForTarget(t share.Target) (Route, error) {
	switch {
	case t.IsImageMarker:
		return Route{Path: r.uploadRoute, Payload: share.ImageMarker}, nil
	case t.Strategy == share.StrategyDeepLink:
		return r.ForDeepLink(t.URL)
	case t.IsInternalLink:
		if rt, err := r.ForDeepLink(t.URL); err == nil {
			return rt, nil
		}
		return r.add(t.URL), nil
	case t.URL != "":
		return r.add(t.URL), nil
	case t.Text != "":
		return r.add(t.Text), nil
	}
	return Route{}, ErrUnroutable
}

// ForDeepLink routes a URI opened directly on the host.
func (r Router) ForDeepLink(raw string) (Route, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return Route{}, fmt.Errorf("%w: %q", ErrUnroutable, raw)
	}
	q := u.Query()
	target := strings.TrimSpace(q.Get("url"))
	scheme := strings.ToLower(u.Scheme)

	switch {
	case scheme == r.classifier.Scheme() && scheme != "":
		if target != "" {
			return r.add(target), nil
		}
		return Route{Path: appPath(u), Query: firstValues(q)}, nil

	case (scheme == "http" || scheme == "https") && r.classifier.IsAppHost(u.Hostname()):
		path := u.Path
		if path == "" {
			path = "/"
		}
		if path == r.addRoute && target != "" {
			return r.add(target), nil
		}
		return Route{Path: path, Query: firstValues(q)}, nil

	case target != "":
		return r.add(target), nil
	}
	return Route{}, fmt.Errorf("%w: %q", ErrUnroutable, raw)
}

func (r Router) add(payload string) Route {
	return Route{
		Path:    r.addRoute,
		Query:   map[string]string{"url": payload},
		Payload: payload,
	}
}

// appPath turns app://categories/5 into /categories/5. The host of a custom
// scheme URI is the first path segment.
func appPath(u *url.URL) string {
	var b strings.Builder
	b.WriteByte('/')
	switch {
	case u.Host != "":
		b.WriteString(u.Host)
		b.WriteString(u.Path)
	case u.Opaque != "":
		b.WriteString(strings.TrimLeft(u.Opaque, "/"))
	default:
		b.WriteString(strings.TrimLeft(u.Path, "/"))
	}
	out := b.String()
	if len(out) > 1 {
		out = strings.TrimSuffix(out, "/")
	}
	return out
}

func firstValues(q url.Values) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
