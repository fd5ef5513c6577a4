package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestExecuteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/execute", r.URL.Path)
		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "result = 42", req.Code)
		assert.Equal(t, 60, req.TimeoutSeconds)

		_ = json.NewEncoder(w).Encode(Result{
			Succeeded:  true,
			OutputType: "analysis",
			ResultText: "42",
		})
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPRunner(srv.URL, time.Minute, zaptest.NewLogger(t))
	res, err := r.Execute(context.Background(), Request{
		Code:           "result = 42",
		DatasetIDs:     []string{"d1"},
		TimeoutSeconds: 60,
	})
	require.NoError(t, err)
	assert.True(t, res.Succeeded)
	assert.Equal(t, "42", res.ResultText)
}

func TestExecuteRuntimeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{
			Succeeded: false,
			Error:     "KeyError: 'income'",
		})
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPRunner(srv.URL, time.Minute, zaptest.NewLogger(t))
	res, err := r.Execute(context.Background(), Request{Code: "x"})
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Equal(t, "KeyError: 'income'", res.Error)
}

func TestExecuteUnreachableIsFailedResultNotError(t *testing.T) {
	r := NewHTTPRunner("http://127.0.0.1:1", time.Second, zaptest.NewLogger(t))
	res, err := r.Execute(context.Background(), Request{Code: "x"})
	require.NoError(t, err, "transport faults feed the retry loop as failed results")
	assert.False(t, res.Succeeded)
	assert.NotEmpty(t, res.Error)
}

func TestExecuteServerErrorIsFailedResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	r := NewHTTPRunner(srv.URL, time.Minute, zaptest.NewLogger(t))
	res, err := r.Execute(context.Background(), Request{Code: "x"})
	require.NoError(t, err)
	assert.False(t, res.Succeeded)
	assert.Contains(t, res.Error, "500")
}

func TestExecuteCancellationIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewHTTPRunner(srv.URL, time.Minute, zaptest.NewLogger(t))
	_, err := r.Execute(ctx, Request{Code: "x"})
	assert.ErrorIs(t, err, context.Canceled,
		"cancellation must abort the session, not masquerade as a code failure")
}
