package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/shared/timeparse"
	"github.com/urfave/cli/v2"
)

// client calls the admin endpoints of a running server.
type client struct {
	base   string
	http   *http.Client
	times  *timeparse.Parser
	now    func() time.Time
	output io.Writer
}

func newClient(c *cli.Context) (*client, error) {
	loc, err := time.LoadLocation(c.String("tz"))
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.String("tz"), err)
	}
	return &client{
		base:   strings.TrimRight(c.String("api"), "/"),
		http:   &http.Client{},
		times:  timeparse.New(loc),
		now:    time.Now,
		output: os.Stdout,
	}, nil
}

// window resolves natural-language bounds locally, in the caller's zone, and
// returns them as RFC3339 for the server.
func (cl *client) window(start, end string) (string, string, error) {
	w, err := cl.times.Window(start, end, cl.now())
	if err != nil {
		return "", "", err
	}
	format := func(set bool, t time.Time) string {
		if !set {
			return ""
		}
		return t.Format(time.RFC3339)
	}
	return format(w.Start != 0, w.Start.Time()), format(w.End != 0, w.End.Time()), nil
}

func (cl *client) call(ctx context.Context, path string, body any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cl.base+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := cl.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		_, err = cl.output.Write(data)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(cl.output)
	return err
}
