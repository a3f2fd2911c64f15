// Package api is the HTTPS transport to the Filen service. It speaks the
// uniform {status,message,code,data} gateway envelope, attaches bearer
// authentication, and retries transient failures with exponential backoff.
// Encrypted payloads pass through untouched; all cryptography happens in the
// layers above.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/CrispStrobe/filen-go/internal/models"
)

// Production service hosts. The gateway serves the metadata API, ingest
// accepts chunk uploads, egest serves chunk downloads.
const (
	DefaultGatewayURL = "https://gateway.filen.io"
	DefaultIngestURL  = "https://ingest.filen.io"
	DefaultEgestURL   = "https://egest.filen.io"
)

const (
	defaultTimeout      = 2 * time.Minute
	defaultChunkTimeout = 30 * time.Second
	defaultMaxRetries   = 3
	defaultRetryBase    = 1 * time.Second
)

// Client is the full wire surface used by the drive, transfer, and batch
// layers. Every call takes a context; retries respect its cancellation.
type Client interface {
	// SetAPIKey installs the bearer token for all subsequent calls. It is
	// called once after login, before the client is shared.
	SetAPIKey(key string)

	AuthInfo(ctx context.Context, email string) (*AuthInfoResponse, error)
	Login(ctx context.Context, email, password, twoFactorCode string, authVersion int) (*LoginResponse, error)
	BaseFolder(ctx context.Context) (string, error)

	DirContent(ctx context.Context, uuid string, foldersOnly bool) (*DirContentResponse, error)
	FileInfo(ctx context.Context, uuid string) (*FileInfoResponse, error)
	DirInfo(ctx context.Context, uuid string) (*DirInfoResponse, error)
	FileExists(ctx context.Context, parent, nameHashed string) (*FileExistsResponse, error)

	DirCreate(ctx context.Context, req *DirCreateRequest) (string, error)
	UploadEmpty(ctx context.Context, req *UploadEmptyRequest) error
	UploadDone(ctx context.Context, req *UploadDoneRequest) error
	UploadChunk(ctx context.Context, req *ChunkUploadRequest, data []byte) error
	DownloadChunk(ctx context.Context, region, bucket, uuid string, index int) ([]byte, error)

	Move(ctx context.Context, kind models.ItemKind, uuid, parent string) error
	Trash(ctx context.Context, kind models.ItemKind, uuid string) error
	Restore(ctx context.Context, kind models.ItemKind, uuid string) error
	DeletePermanent(ctx context.Context, kind models.ItemKind, uuid string) error
	DirRename(ctx context.Context, uuid, name, nameHashed string) error
	FileRename(ctx context.Context, uuid, name, nameHashed, metadata string) error
}

// Options configures a client. Zero values fall back to the production
// defaults above.
type Options struct {
	GatewayURL string
	IngestURL  string
	EgestURL   string
	APIKey     string

	// HTTPClient overrides the underlying transport, mainly for tests.
	HTTPClient *http.Client

	// MaxRetries is the number of retries after the first attempt; 0 means
	// the default of 3. RetryBase is the first backoff delay, doubled on
	// each subsequent retry. ChunkTimeout bounds a single chunk upload
	// attempt.
	MaxRetries   uint64
	RetryBase    time.Duration
	ChunkTimeout time.Duration
}

// HTTPClient implements Client over net/http.
type HTTPClient struct {
	http         *http.Client
	gatewayURL   string
	ingestURL    string
	egestURL     string
	apiKey       string
	maxRetries   uint64
	retryBase    time.Duration
	chunkTimeout time.Duration
}

var _ Client = (*HTTPClient)(nil)

// New returns a ready client; see Options for the defaults.
func New(opts Options) *HTTPClient {
	c := &HTTPClient{
		http:         opts.HTTPClient,
		gatewayURL:   opts.GatewayURL,
		ingestURL:    opts.IngestURL,
		egestURL:     opts.EgestURL,
		apiKey:       opts.APIKey,
		maxRetries:   opts.MaxRetries,
		retryBase:    opts.RetryBase,
		chunkTimeout: opts.ChunkTimeout,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.gatewayURL == "" {
		c.gatewayURL = DefaultGatewayURL
	}
	if c.ingestURL == "" {
		c.ingestURL = DefaultIngestURL
	}
	if c.egestURL == "" {
		c.egestURL = DefaultEgestURL
	}
	if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.retryBase == 0 {
		c.retryBase = defaultRetryBase
	}
	if c.chunkTimeout == 0 {
		c.chunkTimeout = defaultChunkTimeout
	}
	return c
}

func (c *HTTPClient) SetAPIKey(key string) {
	c.apiKey = key
}

func (c *HTTPClient) backoff() retry.Backoff {
	return retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// classifyStatus maps an HTTP status to an error. Server-side failures are
// retryable, client-side ones are not, and 401 always means the session is
// gone.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code >= 500:
		return retry.RetryableError(&HTTPError{StatusCode: code})
	case code >= 400:
		return &HTTPError{StatusCode: code}
	}
	return nil
}

// doJSON posts body to a gateway path and decodes the envelope's data into
// out. The body is marshaled once; each retry attempt builds a fresh request
// from the same bytes.
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		p, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode request: %w", err)
		}
		payload = p
	}
	u := c.gatewayURL + path

	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("api: build request: %w", err)
		}
		c.authorize(req)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %w", ErrUnavailable, err))
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp.StatusCode); err != nil {
			return err
		}
		var envelope apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return retry.RetryableError(fmt.Errorf("%w: decode response: %w", ErrUnavailable, err))
		}
		if !envelope.Status {
			return &APIError{Code: envelope.Code, Message: envelope.Message}
		}
		if out != nil && len(envelope.Data) > 0 {
			if err := json.Unmarshal(envelope.Data, out); err != nil {
				return fmt.Errorf("api: decode payload: %w", err)
			}
		}
		return nil
	})
}

func (c *HTTPClient) AuthInfo(ctx context.Context, email string) (*AuthInfoResponse, error) {
	body := struct {
		Email string `json:"email"`
	}{Email: email}
	out := &AuthInfoResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/auth/info", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Login exchanges the derived login password for a session. An empty
// twoFactorCode is sent as the service's "no code" placeholder.
func (c *HTTPClient) Login(ctx context.Context, email, password, twoFactorCode string, authVersion int) (*LoginResponse, error) {
	if twoFactorCode == "" {
		twoFactorCode = "XXXXXX"
	}
	body := struct {
		Email         string `json:"email"`
		Password      string `json:"password"`
		TwoFactorCode string `json:"twoFactorCode"`
		AuthVersion   int    `json:"authVersion"`
	}{Email: email, Password: password, TwoFactorCode: twoFactorCode, AuthVersion: authVersion}
	out := &LoginResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/login", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) BaseFolder(ctx context.Context) (string, error) {
	out := &uuidData{}
	if err := c.doJSON(ctx, http.MethodGet, "/v3/user/baseFolder", nil, out); err != nil {
		return "", err
	}
	return out.UUID, nil
}

// DirContent lists one folder level. The uuid "trash" lists the trash;
// foldersOnly skips the file records server-side.
func (c *HTTPClient) DirContent(ctx context.Context, uuid string, foldersOnly bool) (*DirContentResponse, error) {
	body := struct {
		UUID        string `json:"uuid"`
		FoldersOnly bool   `json:"foldersOnly,omitempty"`
	}{UUID: uuid, FoldersOnly: foldersOnly}
	out := &DirContentResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/dir/content", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) FileInfo(ctx context.Context, uuid string) (*FileInfoResponse, error) {
	body := struct {
		UUID string `json:"uuid"`
	}{UUID: uuid}
	out := &FileInfoResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/file", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) DirInfo(ctx context.Context, uuid string) (*DirInfoResponse, error) {
	body := struct {
		UUID string `json:"uuid"`
	}{UUID: uuid}
	out := &DirInfoResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/dir", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) FileExists(ctx context.Context, parent, nameHashed string) (*FileExistsResponse, error) {
	body := struct {
		Parent     string `json:"parent"`
		NameHashed string `json:"nameHashed"`
	}{Parent: parent, NameHashed: nameHashed}
	out := &FileExistsResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/file/exists", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DirCreate creates one folder and returns the uuid the server recorded,
// which is normally the one from the request.
func (c *HTTPClient) DirCreate(ctx context.Context, req *DirCreateRequest) (string, error) {
	out := &uuidData{}
	if err := c.doJSON(ctx, http.MethodPost, "/v3/dir/create", req, out); err != nil {
		return "", err
	}
	if out.UUID == "" {
		return req.UUID, nil
	}
	return out.UUID, nil
}

func (c *HTTPClient) UploadEmpty(ctx context.Context, req *UploadEmptyRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v3/upload/empty", req, nil)
}

func (c *HTTPClient) UploadDone(ctx context.Context, req *UploadDoneRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/v3/upload/done", req, nil)
}

// UploadChunk posts one encrypted chunk to the ingest host. The chunk is
// addressed entirely by query parameters; the body is the raw ciphertext.
// Each attempt gets its own timeout so a stalled connection cannot pin the
// whole transfer.
func (c *HTTPClient) UploadChunk(ctx context.Context, req *ChunkUploadRequest, data []byte) error {
	q := url.Values{}
	q.Set("uuid", req.UUID)
	q.Set("index", strconv.Itoa(req.Index))
	q.Set("parent", req.Parent)
	q.Set("uploadKey", req.UploadKey)
	q.Set("hash", req.Hash)
	u := c.ingestURL + "/v3/upload?" + q.Encode()

	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.chunkTimeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, u, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("api: build chunk request: %w", err)
		}
		c.authorize(httpReq)
		httpReq.Header.Set("Content-Type", "application/octet-stream")

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %w", ErrUnavailable, err))
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp.StatusCode); err != nil {
			return err
		}
		var envelope apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
			return retry.RetryableError(fmt.Errorf("%w: decode chunk response: %w", ErrUnavailable, err))
		}
		if !envelope.Status {
			return &APIError{Code: envelope.Code, Message: envelope.Message}
		}
		return nil
	})
}

// DownloadChunk fetches one encrypted chunk from the egest host. Egest needs
// no authentication; possession of the uuid is the capability.
func (c *HTTPClient) DownloadChunk(ctx context.Context, region, bucket, uuid string, index int) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/%s/%s/%d", c.egestURL, region, bucket, uuid, index)

	var body []byte
	err := retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
		if err != nil {
			return fmt.Errorf("api: build chunk request: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: %w", ErrUnavailable, err))
		}
		defer resp.Body.Close()

		if err := classifyStatus(resp.StatusCode); err != nil {
			return err
		}
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("%w: read chunk: %w", ErrUnavailable, err))
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *HTTPClient) Move(ctx context.Context, kind models.ItemKind, uuid, parent string) error {
	body := struct {
		UUID string `json:"uuid"`
		To   string `json:"to"`
	}{UUID: uuid, To: parent}
	return c.doJSON(ctx, http.MethodPost, "/v3/"+string(kind)+"/move", body, nil)
}

func (c *HTTPClient) Trash(ctx context.Context, kind models.ItemKind, uuid string) error {
	body := struct {
		UUID string `json:"uuid"`
	}{UUID: uuid}
	return c.doJSON(ctx, http.MethodPost, "/v3/"+string(kind)+"/trash", body, nil)
}

func (c *HTTPClient) Restore(ctx context.Context, kind models.ItemKind, uuid string) error {
	body := struct {
		UUID string `json:"uuid"`
	}{UUID: uuid}
	return c.doJSON(ctx, http.MethodPost, "/v3/"+string(kind)+"/restore", body, nil)
}

func (c *HTTPClient) DeletePermanent(ctx context.Context, kind models.ItemKind, uuid string) error {
	body := struct {
		UUID string `json:"uuid"`
	}{UUID: uuid}
	return c.doJSON(ctx, http.MethodPost, "/v3/"+string(kind)+"/delete/permanent", body, nil)
}

func (c *HTTPClient) DirRename(ctx context.Context, uuid, name, nameHashed string) error {
	body := struct {
		UUID       string `json:"uuid"`
		Name       string `json:"name"`
		NameHashed string `json:"nameHashed"`
	}{UUID: uuid, Name: name, NameHashed: nameHashed}
	return c.doJSON(ctx, http.MethodPost, "/v3/dir/rename", body, nil)
}

func (c *HTTPClient) FileRename(ctx context.Context, uuid, name, nameHashed, metadata string) error {
	body := struct {
		UUID       string `json:"uuid"`
		Name       string `json:"name"`
		NameHashed string `json:"nameHashed"`
		Metadata   string `json:"metadata"`
	}{UUID: uuid, Name: name, NameHashed: nameHashed, Metadata: metadata}
	return c.doJSON(ctx, http.MethodPost, "/v3/file/rename", body, nil)
}
