package api_test

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	config "github.com/tigerroll/sequencer/pkg/sequencer/core/config"
	"github.com/tigerroll/sequencer/pkg/sequencer/transport/api"
)

func TestServerLifecycle(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newAPIFixture(t)
	srv := api.NewServer(config.ServerConfig{Address: "127.0.0.1:0", ReadTimeoutSeconds: 5, WriteTimeoutSeconds: 5}, f.router)
	assert.Nil(t, srv.Addr())

	ctx := context.Background()
	require.NoError(t, srv.Start(ctx))
	require.NotNil(t, srv.Addr())

	client := &http.Client{Transport: &http.Transport{}}
	resp, err := client.Get("http://" + srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "ok")
	client.CloseIdleConnections()

	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx), "stopping twice is a no-op")
}
