package config

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// parse reads directives from r. The name is used in error messages only.
func (c *Config) parse(r io.Reader, name string) error {
	scanner := bufio.NewScanner(r)
	lineno := 0

	for scanner.Scan() {
		lineno++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		keyword, args := strings.ToLower(fields[0]), fields[1:]

		if err := c.directive(keyword, args); err != nil {
			return fmt.Errorf("%s:%d: %w", name, lineno, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	return nil
}

func (c *Config) directive(keyword string, args []string) error {
	switch keyword {
	case "application":
		if len(args) < 2 {
			return fmt.Errorf("Application requires a client id and redirect URI")
		}
		u, err := url.Parse(args[1])
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("Application redirect URI %q is not an absolute URI", args[1])
		}
		c.Applications = append(c.Applications, Application{
			ClientID:    args[0],
			RedirectURI: args[1],
			Name:        strings.Join(args[2:], " "),
		})

	case "logfile":
		if len(args) != 1 {
			return fmt.Errorf("LogFile requires a single value")
		}
		c.LogFile = args[0]

	case "loglevel":
		if len(args) != 1 {
			return fmt.Errorf("LogLevel requires a single value")
		}
		c.LogLevel = strings.ToLower(args[0])

	case "introspectgroup":
		if len(args) != 1 {
			return fmt.Errorf("IntrospectGroup requires a group name or gid")
		}
		c.IntrospectGroup = args[0]

	case "registergroup":
		if len(args) != 1 {
			return fmt.Errorf("RegisterGroup requires a group name or gid")
		}
		c.RegisterGroup = args[0]

	case "maxgrantlife":
		if len(args) != 1 {
			return fmt.Errorf("MaxGrantLife requires a single value")
		}
		d, err := parseLife(args[0])
		if err != nil {
			return fmt.Errorf("bad MaxGrantLife: %w", err)
		}
		c.MaxGrantLife = d

	case "maxtokenlife":
		if len(args) != 1 {
			return fmt.Errorf("MaxTokenLife requires a single value")
		}
		d, err := parseLife(args[0])
		if err != nil {
			return fmt.Errorf("bad MaxTokenLife: %w", err)
		}
		c.MaxTokenLife = d

	case "option":
		if len(args) != 1 {
			return fmt.Errorf("Option requires a single value")
		}
		switch strings.ToLower(args[0]) {
		case "basicauth":
			c.BasicAuth = true
		case "metrics":
			c.Metrics = true
		default:
			return fmt.Errorf("unknown Option %q", args[0])
		}

	case "resource":
		// Resource {public|private|shared} <remote> <local> [<group>]
		if len(args) < 3 || len(args) > 4 {
			return fmt.Errorf("Resource requires a scope, remote path, and local path")
		}
		scope := strings.ToLower(args[0])
		switch scope {
		case "public", "private", "shared":
		default:
			return fmt.Errorf("unknown Resource scope %q", args[0])
		}
		res := Resource{Scope: scope, RemotePath: args[1], LocalPath: args[2]}
		if len(args) == 4 {
			res.Group = args[3]
		}
		if !strings.HasPrefix(res.RemotePath, "/") {
			return fmt.Errorf("Resource remote path %q must start with /", res.RemotePath)
		}
		c.Resources = append(c.Resources, res)

	case "servername":
		if len(args) != 1 {
			return fmt.Errorf("ServerName requires a single value")
		}
		host, port, ok := strings.Cut(args[0], ":")
		c.ServerName = strings.TrimSuffix(host, ".")
		if ok {
			p, err := strconv.Atoi(port)
			if err != nil || p < 1 || p > 65535 {
				return fmt.Errorf("bad ServerName port %q", port)
			}
			c.ServerPort = p
		}

	case "statefile":
		if len(args) != 1 {
			return fmt.Errorf("StateFile requires a single value")
		}
		c.StateFile = args[0]

	case "testpassword":
		if len(args) != 1 {
			return fmt.Errorf("TestPassword requires a single value")
		}
		c.TestPassword = args[0]

	default:
		return fmt.Errorf("unknown directive %q", keyword)
	}
	return nil
}

// parseLife parses a lifetime value: a bare integer is seconds; the suffixes
// m, h, d, and w scale to minutes, hours, days, and weeks.
func parseLife(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}

	scale := time.Second
	switch s[len(s)-1] {
	case 'm':
		scale, s = time.Minute, s[:len(s)-1]
	case 'h':
		scale, s = time.Hour, s[:len(s)-1]
	case 'd':
		scale, s = 24*time.Hour, s[:len(s)-1]
	case 'w':
		scale, s = 7*24*time.Hour, s[:len(s)-1]
	}

	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad lifetime value %q", s)
	}
	return time.Duration(n) * scale, nil
}
