package eso

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/raterudder/esoimport/pkg/common"
	"github.com/raterudder/esoimport/pkg/log"
	"github.com/raterudder/esoimport/pkg/types"
)

const (
	defaultLoginURL = "https://mano.eso.lt/?destination=/consumption"
	defaultDataURL  = "https://mano.eso.lt/consumption?ajax_form=1&_wrapper_format=drupal_ajax"
	defaultLocation = "Europe/Vilnius"
)

// Client talks to the ESO self-service portal. It owns a single session
// (cookies and form tokens) and a per metering point cache of fetched
// datasets. A Client is safe for concurrent use but requests are serialized.
type Client struct {
	loginURL string
	dataURL  string
	location *time.Location

	mu               sync.Mutex
	client           *http.Client
	noRedirectClient *http.Client
	jar              http.CookieJar
	authenticated    bool
	tokens           FormTokens
	datasets         map[string]types.Dataset
}

// NewClient returns a client using a copy of httpClient for requests. Any jar
// on httpClient is replaced with the client's own session jar.
func NewClient(httpClient *http.Client, loginURL, dataURL string, loc *time.Location) *Client {
	cp := *httpClient
	return &Client{
		loginURL:         loginURL,
		dataURL:          dataURL,
		location:         loc,
		client:           &cp,
		noRedirectClient: common.WithoutRedirects(&cp),
		datasets:         make(map[string]types.Dataset),
	}
}

// Validate ensures the configuration is valid.
func (c *Client) Validate() error {
	for name, u := range map[string]string{"eso-login-url": c.loginURL, "eso-data-url": c.dataURL} {
		if u == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.Parse(u); err != nil {
			return fmt.Errorf("failed to parse %s (%s): %w", name, u, err)
		}
	}
	if c.location == nil {
		return fmt.Errorf("location is required")
	}
	return nil
}

// Location returns the portal's time zone.
func (c *Client) Location() *time.Location {
	return c.location
}

// Ready reports whether the client holds a session that can be used to fetch.
func (c *Client) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Tokens returns a copy of the current form tokens.
func (c *Client) Tokens() FormTokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens
}

// Login starts a new session, replacing any previous one and clearing the
// dataset cache. ErrNoCookies is returned if the portal didn't set any
// cookie.
func (c *Client) Login(ctx context.Context, creds types.Credentials) error {
	if err := creds.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidate()
	c.datasets = make(map[string]types.Dataset)

	jar := common.NewCookieJar()
	c.jar = jar
	c.client.Jar = jar
	c.noRedirectClient.Jar = jar

	data := url.Values{}
	data.Set("name", creds.Username)
	data.Set("pass", creds.Password)
	data.Set("login_type", "1")
	data.Set("form_id", "user_login_form")

	req, err := newPostFormRequest(ctx, c.loginURL, data)
	if err != nil {
		return err
	}

	log.Ctx(ctx).DebugContext(ctx, "logging in to eso", slog.String("username", creds.Username))
	resp, err := c.client.Do(req)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "eso login request failed", slog.Any("error", err))
		return fmt.Errorf("login failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, URL: c.loginURL}
	}

	if !c.hasCookies() {
		log.Ctx(ctx).ErrorContext(ctx, "failed to get cookies after login, possibly invalid credentials")
		return ErrNoCookies
	}

	c.tokens = ParseFormTokens(resp.Body)
	c.authenticated = true

	formID, _ := c.tokens.Get(FieldFormID)
	log.Ctx(ctx).DebugContext(ctx, "eso login success", slog.String("formID", formID))
	return nil
}

// FetchConsumption fetches the week of hourly data around asOf for the
// metering point and caches it. Points that were already fetched in this
// session are not fetched again.
func (c *Client) FetchConsumption(ctx context.Context, pointID string, asOf time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.datasets[pointID]; ok {
		log.Ctx(ctx).DebugContext(ctx, "consumption already fetched", slog.String("pointID", pointID))
		return nil
	}

	res, err := c.fetch(ctx, pointID, asOf)
	if err != nil {
		return err
	}
	// tokens are merged even if the datasets turn out to be unusable
	c.tokens = res.tokens

	dataset := make(types.Dataset)
	var found bool
	for _, cmd := range res.commands {
		if cmd.Err != nil {
			log.Ctx(ctx).WarnContext(ctx, "ignoring undecodable settings command", slog.Any("error", cmd.Err))
			continue
		}
		if cmd.Kind != CommandSettings || cmd.Consumption == nil {
			continue
		}
		found = true
		parsed, err := ParseDatasets(cmd.Consumption.GraphicsData.Datasets, c.location)
		if err != nil {
			return err
		}
		for key, series := range parsed {
			dataset[key] = series
		}
	}
	if !found {
		return ErrEmptyDataset
	}

	c.datasets[pointID] = dataset
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched consumption",
		slog.String("pointID", pointID),
		slog.Int("series", len(dataset)),
	)
	return nil
}

// Dataset returns the cached dataset for the metering point.
func (c *Client) Dataset(pointID string) (types.Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.datasets[pointID]
	return d, ok
}

type fetchResult struct {
	commands []Command
	// tokens is the session's token set with any rotation applied
	tokens FormTokens
}

// fetch requests the data for a metering point. It must be called with mu
// held. The returned tokens must be merged into the session by the caller.
func (c *Client) fetch(ctx context.Context, pointID string, asOf time.Time) (fetchResult, error) {
	if !c.authenticated || !c.hasCookies() {
		c.invalidate()
		return fetchResult{}, ErrNotAuthenticated
	}
	formID, _ := c.tokens.Get(FieldFormID)
	if formID != consumptionFormID {
		log.Ctx(ctx).WarnContext(ctx, "unexpected form id", slog.String("formID", formID))
		c.invalidate()
		return fetchResult{}, ErrFormNotReady
	}

	buildID, _ := c.tokens.Get(FieldFormBuildID)
	formToken, _ := c.tokens.Get(FieldFormToken)

	data := url.Values{}
	data.Set("objects[]", pointID)
	data.Set("display_type", "hourly")
	data.Set("period", "week")
	data.Set("energy_type", "general")
	data.Set("scales", "total")
	data.Set("active_date_value", asOf.In(c.location).Format("2006-01-02")+" 00:00")
	data.Set("made_energy_status", "1")
	// required by the endpoint, meaning unknown
	data.Set("visible_scales_field", "0")
	data.Set("visible_last_year_comparison_field", "0")
	data.Set("form_build_id", buildID)
	data.Set("form_token", formToken)
	data.Set("form_id", formID)
	data.Set("_drupal_ajax", "1")
	data.Set("_triggering_element_name", "display_type")

	req, err := newPostFormRequest(ctx, c.dataURL, data)
	if err != nil {
		return fetchResult{}, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	log.Ctx(ctx).DebugContext(ctx, "fetching consumption", slog.String("pointID", pointID), slog.Time("asOf", asOf))
	resp, err := c.noRedirectClient.Do(req)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch consumption", slog.Any("error", err))
		return fetchResult{}, fmt.Errorf("failed to fetch consumption: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: c.dataURL}
		if httpErr.Redirect() {
			log.Ctx(ctx).WarnContext(ctx, "eso session expired", slog.String("location", resp.Header.Get("Location")))
			c.invalidate()
		}
		return fetchResult{}, httpErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fetchResult{}, fmt.Errorf("failed to read consumption response: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "got consumption response", slog.Int("bytes", len(body)))

	var commands []Command
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&commands); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode consumption response", slog.Any("error", err))
		return fetchResult{}, fmt.Errorf("failed to decode consumption response: %w", err)
	}

	return fetchResult{
		commands: commands,
		tokens:   applyTokenRotation(ctx, c.tokens, commands),
	}, nil
}

// applyTokenRotation returns a copy of tokens with every update_build_id
// command applied in order.
func applyTokenRotation(ctx context.Context, tokens FormTokens, commands []Command) FormTokens {
	for _, cmd := range commands {
		if cmd.Kind != CommandUpdateBuildID {
			continue
		}
		log.Ctx(ctx).DebugContext(ctx, "rotating form build id")
		tokens.Set(FieldFormBuildID, cmd.NewBuildID)
	}
	return tokens
}

// invalidate drops the session state. It must be called with mu held.
func (c *Client) invalidate() {
	c.authenticated = false
	c.tokens = FormTokens{}
}

// hasCookies reports whether the jar holds any cookie for the portal. It must
// be called with mu held.
func (c *Client) hasCookies() bool {
	if c.jar == nil {
		return false
	}
	u, err := url.Parse(c.loginURL)
	if err != nil {
		return false
	}
	return len(c.jar.Cookies(u)) > 0
}

func newPostFormRequest(ctx context.Context, endpoint string, data url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}
