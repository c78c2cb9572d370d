package voice

import (
	"log/slog"
	"net/http"
	"time"
)

const (
	DefaultEndpoint       = "http://ec2-54-84-186-136.compute-1.amazonaws.com:8080/audio"
	DefaultCharacter      = "shaq"
	DefaultRequestTimeout = 30 * time.Second
)

type ClientOption func(*Client)

// WithEndpoint sets the voice service base URL. Any query string on the
// endpoint is replaced by the character and question parameters.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func WithCharacter(character string) ClientOption {
	return func(c *Client) {
		if character != "" {
			c.character = character
		}
	}
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRequestTimeout bounds each of the two requests individually. A
// non-positive timeout leaves requests bounded only by the caller context.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.requestTimeout = timeout }
}

func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

type SynthesizeOptions struct {
	// ResponseReceivedCallback is called once the audio reference has been
	// received and before the clip is requested.
	ResponseReceivedCallback func()
}

type SynthesizeOption func(*SynthesizeOptions)

func WithResponseReceivedCallback(callback func()) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		o.ResponseReceivedCallback = callback
	}
}
