package sheets

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const readOnlyScope = "https://www.googleapis.com/auth/spreadsheets.readonly"

// Client is the slice of the Sheets API the adapter uses.
type Client interface {
	// Values returns the raw cell grid for a range. Trailing empty cells of a
	// row are omitted by the API, so rows may be ragged.
	Values(ctx context.Context, cfg *Config) ([][]any, error)
	// Title returns the spreadsheet title; it doubles as a reachability check.
	Title(ctx context.Context, cfg *Config) (string, error)
}

// googleClient builds a Sheets service per call from the source's own credentials.
type googleClient struct {
	httpClient *http.Client
	endpoint   string
}

// NewGoogleClient returns a Client backed by the Sheets v4 API. endpoint
// overrides the API base URL and is empty in production.
func NewGoogleClient(httpClient *http.Client, endpoint string) Client {
	return &googleClient{httpClient: httpClient, endpoint: endpoint}
}

func (c *googleClient) service(ctx context.Context, cfg *Config) (*gsheets.Service, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)), option.WithScopes(readOnlyScope))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
		if c.httpClient != nil {
			opts = append(opts, option.WithHTTPClient(c.httpClient))
		}
	default:
		return nil, fmt.Errorf("google sheets requires api_key or credentials_json")
	}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	return gsheets.NewService(ctx, opts...)
}

func (c *googleClient) Values(ctx context.Context, cfg *Config) ([][]any, error) {
	srv, err := c.service(ctx, cfg)
	if err != nil {
		return nil, err
	}
	resp, err := srv.Spreadsheets.Values.Get(cfg.SpreadsheetID, cfg.Range).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (c *googleClient) Title(ctx context.Context, cfg *Config) (string, error) {
	srv, err := c.service(ctx, cfg)
	if err != nil {
		return "", err
	}
	ss, err := srv.Spreadsheets.Get(cfg.SpreadsheetID).Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if ss.Properties == nil {
		return "", nil
	}
	return ss.Properties.Title, nil
}
