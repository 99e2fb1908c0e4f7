// Package rest implements the REST client: route descriptors, the
// rate-limit registry, and the endpoint surface.
package rest

import (
	"fmt"
	"strings"
)

// BaseURL is the production REST endpoint.
const BaseURL = "https://discord.com/api/v10"

// missingParam is how an absent major parameter renders inside a grouping
// key. Both major parameters are optional; the key format keeps a fixed
// shape either way.
const missingParam = "None"

// Params are the named values substituted into a route's path template.
type Params map[string]any

// TemplateError reports a path template placeholder with no matching
// parameter.
type TemplateError struct {
	Path        string
	Placeholder string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("rest: path %q references parameter %q which was not supplied", e.Path, e.Placeholder)
}

// Route describes one endpoint invocation: the HTTP method, the path
// template with {name} placeholders, the parameter values, and whether the
// call must be authenticated. Routes are immutable values.
type Route struct {
	Method       string
	Path         string
	RequiresAuth bool

	rendered    string
	groupingKey string
}

// NewRoute builds a route, rendering the path template eagerly so that a
// missing parameter fails here rather than at request time.
func NewRoute(method, path string, params Params) (Route, error) {
	rendered, err := renderPath(path, params)
	if err != nil {
		return Route{}, err
	}
	return Route{
		Method:       method,
		Path:         path,
		RequiresAuth: true,
		rendered:     rendered,
		groupingKey:  groupingKey(method, path, params),
	}, nil
}

// NewUnauthenticatedRoute builds a route for the few endpoints callable
// without a token.
func NewUnauthenticatedRoute(method, path string, params Params) (Route, error) {
	route, err := NewRoute(method, path, params)
	if err != nil {
		return Route{}, err
	}
	route.RequiresAuth = false
	return route, nil
}

// URL returns the absolute request URL under the given base.
func (r Route) URL(baseURL string) string {
	return baseURL + r.rendered
}

// GroupingKey returns the provisional rate-limit key for this route. All
// requests the service may pool into one bucket before any bucket ID is
// learned share the same key: the method, the unrendered path template, and
// the two major parameters. The key is coarser than the server-assigned
// bucket, which is why the registry migrates gates once a bucket ID shows
// up on a response.
func (r Route) GroupingKey() string {
	return r.groupingKey
}

func groupingKey(method, path string, params Params) string {
	guildID := missingParam
	channelID := missingParam
	if v, ok := params["guild_id"]; ok {
		guildID = fmt.Sprintf("%v", v)
	}
	if v, ok := params["channel_id"]; ok {
		channelID = fmt.Sprintf("%v", v)
	}
	return fmt.Sprintf("%s-%s-%s:%s", method, path, guildID, channelID)
}

func renderPath(path string, params Params) (string, error) {
	var b strings.Builder
	rest := path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		closing += open

		name := rest[open+1 : closing]
		value, ok := params[name]
		if !ok {
			return "", &TemplateError{Path: path, Placeholder: name}
		}
		b.WriteString(rest[:open])
		fmt.Fprintf(&b, "%v", value)
		rest = rest[closing+1:]
	}
}
