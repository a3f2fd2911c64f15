package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrispStrobe/filen-go/internal/models"
)

func okEnvelope(data string) string {
	if data == "" {
		return `{"status":true,"message":"ok","code":"ok"}`
	}
	return `{"status":true,"message":"ok","code":"ok","data":` + data + `}`
}

func newTestClient(srvURL string) *HTTPClient {
	return New(Options{
		GatewayURL:   srvURL,
		IngestURL:    srvURL,
		EgestURL:     srvURL,
		RetryBase:    time.Millisecond,
		ChunkTimeout: time.Second,
	})
}

func TestAuthInfo_DecodesEnvelope(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, okEnvelope(`{"authVersion":2,"salt":"abc123"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	info, err := c.AuthInfo(context.Background(), "user@example.com")
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/v3/auth/info", gotPath)
	require.Equal(t, "user@example.com", gotBody["email"])
	require.Equal(t, 2, info.AuthVersion)
	require.Equal(t, "abc123", info.Salt)
}

func TestLogin_SendsPlaceholderTwoFactorCode(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, okEnvelope(`{"apiKey":"key-1","masterKeys":"envelope","baseFolderUUID":"base-1","id":42}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.Login(context.Background(), "user@example.com", "derived-pw", "", 2)
	require.NoError(t, err)
	require.Equal(t, "XXXXXX", gotBody["twoFactorCode"])
	require.Equal(t, "derived-pw", gotBody["password"])
	require.EqualValues(t, 2, gotBody["authVersion"])
	require.Equal(t, "key-1", resp.APIKey)
	require.Equal(t, "base-1", resp.BaseFolderUUID)
	require.EqualValues(t, 42, resp.ID)
}

func TestLogin_ForwardsExplicitTwoFactorCode(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, okEnvelope(`{"apiKey":"key-1","masterKeys":"m","baseFolderUUID":"b","id":1}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Login(context.Background(), "user@example.com", "pw", "123456", 2)
	require.NoError(t, err)
	require.Equal(t, "123456", gotBody["twoFactorCode"])
}

func TestDoJSON_RetriesServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, okEnvelope(`{"uuid":"base-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	uuid, err := c.BaseFolder(context.Background())
	require.NoError(t, err)
	require.Equal(t, "base-1", uuid)
	require.EqualValues(t, 3, atomic.LoadInt32(&attempts))
}

func TestDoJSON_ExhaustedRetriesReturnLastError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.BaseFolder(context.Background())
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	// initial attempt plus three retries
	require.EqualValues(t, 4, atomic.LoadInt32(&attempts))
}

func TestDoJSON_NoRetryOnClientError(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.FileInfo(context.Background(), "some-uuid")
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestDoJSON_ConflictIsNotRetried(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.DirCreate(context.Background(), &DirCreateRequest{UUID: "u", Parent: "p"})
	require.Error(t, err)
	require.True(t, IsConflict(err))
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestDoJSON_UnauthorizedIsTerminal(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.BaseFolder(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestDoJSON_DomainErrorCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":false,"message":"please enter your 2fa code","code":"enter_2fa"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Login(context.Background(), "u@e.com", "pw", "", 2)
	require.ErrorIs(t, err, Err2FARequired)
	require.NotErrorIs(t, err, Err2FAWrong)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "enter_2fa", apiErr.Code)
}

func TestDoJSON_BearerHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, okEnvelope(`{"uuid":"base-1"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetAPIKey("secret-key")
	_, err := c.BaseFolder(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer secret-key", gotAuth)
}

func TestDoJSON_NetworkErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.BaseFolder(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestDirContent_TrashAndFoldersOnly(t *testing.T) {
	var gotBodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotBodies = append(gotBodies, body)
		fmt.Fprint(w, okEnvelope(`{"folders":[{"uuid":"f1","name":"enc","parent":"trash","timestamp":1,"lastModified":2}],"uploads":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.DirContent(context.Background(), "trash", false)
	require.NoError(t, err)
	require.Len(t, resp.Folders, 1)
	require.Equal(t, "f1", resp.Folders[0].UUID)

	_, err = c.DirContent(context.Background(), "parent-1", true)
	require.NoError(t, err)

	require.Len(t, gotBodies, 2)
	assert.Equal(t, "trash", gotBodies[0]["uuid"])
	_, sent := gotBodies[0]["foldersOnly"]
	assert.False(t, sent, "foldersOnly false should be omitted")
	assert.Equal(t, true, gotBodies[1]["foldersOnly"])
}

func TestDirCreate_ReturnsServerUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okEnvelope(`{"uuid":"winner-uuid"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	uuid, err := c.DirCreate(context.Background(), &DirCreateRequest{UUID: "requested-uuid", Parent: "p"})
	require.NoError(t, err)
	require.Equal(t, "winner-uuid", uuid)
}

func TestDirCreate_FallsBackToRequestUUID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, okEnvelope(""))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	uuid, err := c.DirCreate(context.Background(), &DirCreateRequest{UUID: "requested-uuid", Parent: "p"})
	require.NoError(t, err)
	require.Equal(t, "requested-uuid", uuid)
}

func TestUploadChunk_QueryAndBody(t *testing.T) {
	var gotQuery map[string]string
	var gotBody []byte
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, okEnvelope(""))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetAPIKey("chunk-key")
	chunk := []byte("ciphertext bytes")
	err := c.UploadChunk(context.Background(), &ChunkUploadRequest{
		UUID:      "file-uuid",
		Index:     7,
		Parent:    "parent-uuid",
		UploadKey: "upload-key-32",
		Hash:      "deadbeef",
	}, chunk)
	require.NoError(t, err)

	require.Equal(t, "file-uuid", gotQuery["uuid"])
	require.Equal(t, "7", gotQuery["index"])
	require.Equal(t, "parent-uuid", gotQuery["parent"])
	require.Equal(t, "upload-key-32", gotQuery["uploadKey"])
	require.Equal(t, "deadbeef", gotQuery["hash"])
	require.Equal(t, chunk, gotBody)
	require.Equal(t, "Bearer chunk-key", gotAuth)
}

func TestUploadChunk_DomainErrorIsTerminal(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		fmt.Fprint(w, `{"status":false,"message":"invalid upload key","code":"invalid_params"}`)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.UploadChunk(context.Background(), &ChunkUploadRequest{UUID: "u", Index: 0}, []byte("x"))
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "invalid_params", apiErr.Code)
	require.EqualValues(t, 1, atomic.LoadInt32(&attempts))
}

func TestUploadChunk_RetriesFullBody(t *testing.T) {
	var attempts int32
	var lastBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastBody, _ = io.ReadAll(r.Body)
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, okEnvelope(""))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.UploadChunk(context.Background(), &ChunkUploadRequest{UUID: "u", Index: 0}, []byte("chunk payload"))
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&attempts))
	require.Equal(t, []byte("chunk payload"), lastBody, "retried attempt must resend the whole body")
}

func TestDownloadChunk_PathAndBytes(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("encrypted chunk"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetAPIKey("should-not-be-sent")
	data, err := c.DownloadChunk(context.Background(), "de-1", "bucket-a", "file-uuid", 3)
	require.NoError(t, err)
	require.Equal(t, "/de-1/bucket-a/file-uuid/3", gotPath)
	require.Equal(t, []byte("encrypted chunk"), data)
	require.Empty(t, gotAuth, "chunk downloads are unauthenticated")
}

func TestDownloadChunk_RetriesServerErrors(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	data, err := c.DownloadChunk(context.Background(), "r", "b", "u", 0)
	require.NoError(t, err)
	require.Equal(t, []byte("ok"), data)
	require.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestMutations_KindSelectsPath(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		fmt.Fprint(w, okEnvelope(""))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	require.NoError(t, c.Move(ctx, models.KindFolder, "u1", "dest-1"))
	require.NoError(t, c.Move(ctx, models.KindFile, "u2", "dest-2"))
	require.NoError(t, c.Trash(ctx, models.KindFile, "u3"))
	require.NoError(t, c.Restore(ctx, models.KindFolder, "u4"))
	require.NoError(t, c.DeletePermanent(ctx, models.KindFile, "u5"))

	require.Equal(t, []string{
		"/v3/dir/move",
		"/v3/file/move",
		"/v3/file/trash",
		"/v3/dir/restore",
		"/v3/file/delete/permanent",
	}, paths)
	assert.Equal(t, "u1", bodies[0]["uuid"])
	assert.Equal(t, "dest-1", bodies[0]["to"])
	assert.Equal(t, "u5", bodies[4]["uuid"])
}

func TestRename_Payloads(t *testing.T) {
	var paths []string
	var bodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, body)
		fmt.Fprint(w, okEnvelope(""))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()
	require.NoError(t, c.DirRename(ctx, "d1", "enc-name", "hash-1"))
	require.NoError(t, c.FileRename(ctx, "f1", "enc-name-2", "hash-2", "enc-metadata"))

	require.Equal(t, []string{"/v3/dir/rename", "/v3/file/rename"}, paths)
	assert.Equal(t, "enc-name", bodies[0]["name"])
	assert.Equal(t, "hash-1", bodies[0]["nameHashed"])
	_, hasMetadata := bodies[0]["metadata"]
	assert.False(t, hasMetadata)
	assert.Equal(t, "enc-metadata", bodies[1]["metadata"])
}

func TestFileExists_Payload(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, okEnvelope(`{"exists":true,"uuid":"existing-uuid"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	resp, err := c.FileExists(context.Background(), "parent-1", "abcdef")
	require.NoError(t, err)
	require.True(t, resp.Exists)
	require.Equal(t, "existing-uuid", resp.UUID)
	require.Equal(t, "parent-1", gotBody["parent"])
	require.Equal(t, "abcdef", gotBody["nameHashed"])
}

func TestContextCancellation_StopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(Options{GatewayURL: srv.URL, RetryBase: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.BaseFolder(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))
}
