package eso

import (
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/raterudder/esoimport/pkg/common"
)

// Configured sets up the portal client based on flags.
func Configured() *Client {
	c := NewClient(common.HTTPClient(time.Minute), defaultLoginURL, defaultDataURL, nil)

	loginURL := lflag.String("eso-login-url", defaultLoginURL, "URL of the ESO portal login form")
	dataURL := lflag.String("eso-data-url", defaultDataURL, "URL of the ESO consumption AJAX endpoint")
	timeout := lflag.Duration("eso-timeout", time.Minute, "Timeout for requests to the ESO portal")
	location := lflag.String("eso-location", defaultLocation, "Time zone the portal reports readings in")

	lflag.Do(func() {
		c.loginURL = *loginURL
		c.dataURL = *dataURL
		c.client.Timeout = *timeout
		c.noRedirectClient.Timeout = *timeout

		loc, err := time.LoadLocation(*location)
		if err != nil {
			panic(fmt.Errorf("failed to load eso location (%s): %w", *location, err))
		}
		c.location = loc

		if err := c.Validate(); err != nil {
			panic(fmt.Sprintf("eso validation failed: %v", err))
		}
	})

	return c
}
