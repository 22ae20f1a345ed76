package utility

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

func registerNetworkFuncs(r *Registry) {
	reg(r, "network", "parseUrl", "Break a URL into its components", func(args []interface{}) (interface{}, error) {
		raw, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		u, parseErr := url.Parse(raw)
		if parseErr != nil {
			return nil, fmt.Errorf("parseUrl: %w", parseErr)
		}
		query := map[string]interface{}{}
		for key, values := range u.Query() {
			if len(values) == 1 {
				query[key] = values[0]
			} else {
				items := make([]interface{}, len(values))
				for i, v := range values {
					items[i] = v
				}
				query[key] = items
			}
		}
		return map[string]interface{}{
			"scheme":   u.Scheme,
			"host":     u.Host,
			"hostname": u.Hostname(),
			"port":     u.Port(),
			"path":     u.Path,
			"query":    query,
			"fragment": u.Fragment,
		}, nil
	}, Param{Name: "url", Type: "string", Required: true})

	reg(r, "network", "buildUrl", "Assemble a URL from base, path and query object", func(args []interface{}) (interface{}, error) {
		base, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		u, parseErr := url.Parse(base)
		if parseErr != nil {
			return nil, fmt.Errorf("buildUrl: %w", parseErr)
		}
		if path := optionalString(args, 1, ""); path != "" {
			u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
		}
		if len(args) > 2 {
			params, ok := args[2].(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("buildUrl: query must be an object")
			}
			q := u.Query()
			for key, value := range params {
				q.Set(key, toString(value))
			}
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	}, Param{Name: "base", Type: "string", Required: true},
		Param{Name: "path", Type: "string"},
		Param{Name: "query", Type: "object"})

	reg(r, "network", "extractDomain", "Registered domain of a URL or hostname", func(args []interface{}) (interface{}, error) {
		raw, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		host := raw
		if strings.Contains(raw, "://") {
			u, parseErr := url.Parse(raw)
			if parseErr != nil {
				return nil, fmt.Errorf("extractDomain: %w", parseErr)
			}
			host = u.Hostname()
		} else if idx := strings.IndexAny(host, "/:"); idx >= 0 {
			host = host[:idx]
		}
		parts := strings.Split(host, ".")
		if len(parts) <= 2 {
			return host, nil
		}
		return strings.Join(parts[len(parts)-2:], "."), nil
	}, Param{Name: "url", Type: "string", Required: true})

	reg(r, "network", "isValidIP", "True if the value is a valid IPv4 or IPv6 address", func(args []interface{}) (interface{}, error) {
		s, err := stringArg(args, 0)
		if err != nil {
			return nil, err
		}
		return net.ParseIP(s) != nil, nil
	}, Param{Name: "value", Type: "string", Required: true})

	reg(r, "network", "isValidPort", "True if the value is a valid TCP port number", func(args []interface{}) (interface{}, error) {
		n, err := intArg(args, 0)
		if err != nil {
			return false, nil
		}
		return n >= 1 && n <= 65535, nil
	}, Param{Name: "value", Type: "number", Required: true})
}
