package route

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"firestige.xyz/vrouter/internal/core"
)

// yamlTable is the YAML route table layout:
//
//	routes:
//	  - prefix: 10.0.0.0
//	    next_hop: 10.0.0.1
//	    mask: 255.255.255.0
//	    interface: 0
type yamlTable struct {
	Routes []yamlRoute `yaml:"routes"`
}

type yamlRoute struct {
	Prefix    string `yaml:"prefix"`
	NextHop   string `yaml:"next_hop"`
	Mask      string `yaml:"mask"`
	Interface int    `yaml:"interface"`
}

// Load reads a static route table from path. Files ending in .yaml or .yml
// are parsed as YAML; everything else uses the text format understood by
// Parse.
func Load(path string) ([]Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open route table %s: %w", path, err)
	}
	defer f.Close()

	var routes []Route
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		routes, err = ParseYAML(f)
	default:
		routes, err = Parse(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse route table %s: %w", path, err)
	}
	return routes, nil
}

// Parse reads the text route table format: one route per line as
//
//	prefix next_hop mask interface
//
// Blank lines and lines starting with '#' are ignored.
func Parse(r io.Reader) ([]Route, error) {
	var routes []Route
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("%w: line %d: expected 4 fields, got %d", core.ErrRouteFormat, lineNo, len(fields))
		}
		ifIndex, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad interface %q", core.ErrRouteFormat, lineNo, fields[3])
		}
		rt, err := makeRoute(fields[0], fields[1], fields[2], ifIndex)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		routes = append(routes, rt)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return routes, nil
}

// ParseYAML reads the YAML route table format.
func ParseYAML(r io.Reader) ([]Route, error) {
	var doc yamlTable
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", core.ErrRouteFormat, err)
	}
	routes := make([]Route, 0, len(doc.Routes))
	for i, yr := range doc.Routes {
		rt, err := makeRoute(yr.Prefix, yr.NextHop, yr.Mask, yr.Interface)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		routes = append(routes, rt)
	}
	return routes, nil
}

func makeRoute(prefix, nextHop, mask string, ifIndex int) (Route, error) {
	p, err := parseIPv4(prefix)
	if err != nil {
		return Route{}, err
	}
	nh, err := parseIPv4(nextHop)
	if err != nil {
		return Route{}, err
	}
	m, err := parseIPv4(mask)
	if err != nil {
		return Route{}, err
	}
	rt := Route{Prefix: p, NextHop: nh, Mask: m, Interface: ifIndex}
	if err := rt.Validate(); err != nil {
		return Route{}, err
	}
	return rt, nil
}

func parseIPv4(s string) (uint32, error) {
	a, err := netip.ParseAddr(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", core.ErrRouteFormat, err)
	}
	v, ok := core.AddrToUint32(a)
	if !ok {
		return 0, fmt.Errorf("%w: %s is not an ipv4 address", core.ErrRouteFormat, s)
	}
	return v, nil
}
