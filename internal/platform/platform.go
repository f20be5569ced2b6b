// Package platform integrates the desktop client with the operating
// system, foremost the custom URI scheme the play links use.
package platform

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// URIScheme is the custom scheme play links are served under.
const URIScheme = "entertainment-decider"

// PlayRequest is a parsed play link.
type PlayRequest struct {
	VideoURI string
	Start    int // resume position in seconds
}

// ParsePlayLink parses an entertainment-decider:///player/play link as
// rendered by the web pages.
func ParsePlayLink(raw string) (*PlayRequest, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid play link: %w", err)
	}
	if u.Scheme != URIScheme {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path != "/player/play" {
		return nil, fmt.Errorf("unsupported action %q", u.Path)
	}

	query := u.Query()
	videoURI := query.Get("video_uri")
	if videoURI == "" {
		return nil, fmt.Errorf("play link misses video_uri")
	}

	req := &PlayRequest{VideoURI: videoURI}
	if start := query.Get("start"); start != "" {
		req.Start, err = strconv.Atoi(start)
		if err != nil {
			return nil, fmt.Errorf("invalid start position %q", start)
		}
	}
	return req, nil
}

// DesktopEntry renders the freedesktop .desktop file that registers
// the given executable as handler for the URI scheme.
func DesktopEntry(execPath string) string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	b.WriteString("Type=Application\n")
	b.WriteString("Name=Entertainment Decider Client\n")
	fmt.Fprintf(&b, "Exec=%s play %%u\n", execPath)
	fmt.Fprintf(&b, "MimeType=x-scheme-handler/%s;\n", URIScheme)
	b.WriteString("NoDisplay=true\n")
	return b.String()
}
