package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/99designs/gqlgen/graphql"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/projectanalysis/internal/domain"
	"github.com/rpattn/projectanalysis/internal/filter"
)

type stubUpstream struct {
	calls    atomic.Int32
	status   int
	response string

	mu      sync.Mutex
	request graphql.RawParams
	cookie  string
}

func (s *stubUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	s.mu.Lock()
	if c, err := r.Cookie("session"); err == nil {
		s.cookie = c.Value
	}
	_ = json.NewDecoder(r.Body).Decode(&s.request)
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.response))
}

func newStub(t *testing.T, response string) (*stubUpstream, *Client) {
	t.Helper()
	return newStubWithStatus(t, http.StatusOK, response)
}

func newStubWithStatus(t *testing.T, status int, response string) (*stubUpstream, *Client) {
	t.Helper()
	stub := &stubUpstream{status: status, response: response}
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	return stub, NewClient(server.URL, WithHTTPClient(server.Client()))
}

func whereValid() map[string]any {
	return map[string]any{FilterVariable: map[string]any{"valid": map[string]any{"_eq": true}}}
}

func TestResolveTreeSendsQueryAndCookies(t *testing.T) {
	stub, client := newStub(t, `{"data": {"result": [{"id": 1, "name": "P1", "group": {"memberships": []}}]}}`)

	result, err := client.ResolveTree(context.Background(), whereValid(), []*http.Cookie{{Name: "session", Value: "s3cr3t"}})
	require.NoError(t, err)

	require.Equal(t, int32(1), stub.calls.Load())
	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Equal(t, ProjectsQueryV1, stub.request.Query)
	require.Equal(t, map[string]any{"valid": map[string]any{"_eq": true}}, stub.request.Variables[FilterVariable])
	require.Equal(t, "s3cr3t", stub.cookie)

	require.Equal(t, domain.KindList, result.Tree.Kind())
	require.Len(t, result.Tree.Items(), 1)
	require.JSONEq(t, `[{"id": 1, "name": "P1", "group": {"memberships": []}}]`, string(result.Raw))
}

func TestResolveTreeMissingFilterMakesNoRequest(t *testing.T) {
	stub, client := newStub(t, `{"data": {"result": []}}`)

	_, err := client.ResolveTree(context.Background(), map[string]any{}, nil)
	require.ErrorIs(t, err, filter.ErrMissingFilter)
	require.Equal(t, int32(0), stub.calls.Load())
}

func TestResolveTreeNullResultIsEmpty(t *testing.T) {
	_, client := newStub(t, `{"data": {"result": null}}`)

	result, err := client.ResolveTree(context.Background(), whereValid(), nil)
	require.NoError(t, err)
	require.Equal(t, domain.KindList, result.Tree.Kind())
	require.Empty(t, result.Tree.Items())
	require.Equal(t, "[]", string(result.Raw))
}

func TestResolveTreeEnvelopeErrors(t *testing.T) {
	for name, response := range map[string]string{
		"missing result key": `{"data": {"other": []}}`,
		"null data":          `{"data": null, "errors": [{"message": "not authorized"}]}`,
		"missing data":       `{"errors": [{"message": "boom", "path": ["result"]}]}`,
		"not json":           `<html>oops</html>`,
	} {
		t.Run(name, func(t *testing.T) {
			_, client := newStub(t, response)
			_, err := client.ResolveTree(context.Background(), whereValid(), nil)
			require.ErrorIs(t, err, ErrUpstreamEnvelope)
		})
	}
}

func TestResolveTreeKeepsResultAlongsideErrors(t *testing.T) {
	_, client := newStub(t, `{"data": {"result": [{"id": 1}]}, "errors": [{"message": "partial"}]}`)

	result, err := client.ResolveTree(context.Background(), whereValid(), nil)
	require.NoError(t, err)
	require.Len(t, result.Tree.Items(), 1)
}

func TestResolveTreeStatusError(t *testing.T) {
	_, client := newStubWithStatus(t, http.StatusBadGateway, `bad gateway`)

	_, err := client.ResolveTree(context.Background(), whereValid(), nil)
	require.ErrorIs(t, err, ErrUpstream)
	require.Contains(t, err.Error(), "502")
}

func TestResolveTreeHonoursCancellation(t *testing.T) {
	_, client := newStub(t, `{"data": {"result": []}}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.ResolveTree(ctx, whereValid(), nil)
	require.ErrorIs(t, err, ErrUpstream)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWithTimeoutIgnoresOptionOrder(t *testing.T) {
	shared := &http.Client{}

	before := NewClient("http://upstream.invalid", WithTimeout(3*time.Second), WithHTTPClient(shared))
	after := NewClient("http://upstream.invalid", WithHTTPClient(shared), WithTimeout(5*time.Second))

	require.Equal(t, 3*time.Second, before.httpClient.Timeout)
	require.Equal(t, 5*time.Second, after.httpClient.Timeout)
	require.Zero(t, shared.Timeout)
	require.NotSame(t, shared, after.httpClient)

	plain := NewClient("http://upstream.invalid", WithHTTPClient(shared))
	require.Same(t, shared, plain.httpClient)
}

func TestWithTimeoutBoundsRequests(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client := NewClient(server.URL, WithTimeout(50*time.Millisecond), WithHTTPClient(server.Client()))
	_, err := client.ResolveTree(context.Background(), whereValid(), nil)
	require.ErrorIs(t, err, ErrUpstream)
	require.Zero(t, server.Client().Timeout)
}

func TestCompileOperation(t *testing.T) {
	require.Equal(t, "result", projectsOperation.resultKey)
	require.True(t, projectsOperation.declares(FilterVariable))

	op, err := compileOperation("plain", `query ($where: F) { projectPage(where: $where) { id } }`)
	require.NoError(t, err)
	require.Equal(t, "projectPage", op.resultKey)

	_, err = compileOperation("broken", `query ($where: F) { result: projectPage(where: $where) { id }`)
	require.Error(t, err)

	_, err = compileOperation("no-filter", `query { result: projectPage { id } }`)
	require.Error(t, err)

	_, err = compileOperation("two-fields", `query ($where: F) { a: x(where: $where) { id } b: y { id } }`)
	require.Error(t, err)
}
