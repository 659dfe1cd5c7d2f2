package sink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aaronlmathis/vsflux/internal/lineproto"
)

var esxRecord = lineproto.Record{
	Entity:  "esx01",
	Kind:    "host",
	Payload: "vmware_cpu,host=esx01 usage.average=12.5 \n",
	Lines:   1,
}

func TestHTTPSink_PostsPayload(t *testing.T) {
	var (
		gotBody        string
		gotType        string
		gotUser        string
		gotPass        string
		gotQuery       string
		gotAuthPresent bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		gotUser, gotPass, gotAuthPresent = r.BasicAuth()
		gotQuery = r.URL.RawQuery
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	writeURL := strings.Replace(srv.URL, "http://", "http://writer:s3cret@", 1) + "/write?db=vmware"
	s, err := NewHTTPSink(zaptest.NewLogger(t), writeURL, 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, s.Write(context.Background(), esxRecord))

	assert.Equal(t, esxRecord.Payload, gotBody)
	assert.Equal(t, "text/plain; charset=utf-8", gotType)
	assert.True(t, gotAuthPresent)
	assert.Equal(t, "writer", gotUser)
	assert.Equal(t, "s3cret", gotPass)
	assert.Equal(t, "db=vmware", gotQuery)
	assert.NotContains(t, s.redacted, "s3cret")
}

func TestHTTPSink_NonSuccessStatus(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "database not found", http.StatusNotFound)
	}))
	defer srv.Close()

	s, err := NewHTTPSink(zaptest.NewLogger(t), srv.URL+"/write", 5*time.Second)
	require.NoError(t, err)

	err = s.Write(context.Background(), esxRecord)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
	assert.Equal(t, "database not found", te.Body)
	assert.Equal(t, 1, calls, "no retry")
}

func TestHTTPSink_ConnectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	s, err := NewHTTPSink(zaptest.NewLogger(t), url+"/write", time.Second)
	require.NoError(t, err)

	assert.Error(t, s.Write(context.Background(), esxRecord))
}

func TestNewHTTPSink_RejectsScheme(t *testing.T) {
	_, err := NewHTTPSink(zaptest.NewLogger(t), "udp://influx:8089", time.Second)
	assert.Error(t, err)
}
