package clients

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/waas-signing-service/api/custodyhandler"
	"github.com/ruteri/waas-signing-service/cryptoutils"
	"github.com/ruteri/waas-signing-service/custody"
	"github.com/ruteri/waas-signing-service/kms"
	"github.com/ruteri/waas-signing-service/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, signDelay time.Duration) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts, err := registry.NewAccounts(registry.DefaultAccounts())
	require.NoError(t, err)

	service := custody.New(&custody.Config{SignWorkers: 4}, accounts, registry.NewSessions(0), kms.NewKeyStore(),
		cryptoutils.NewSecp256k1Backend(signDelay), logger)

	mux := chi.NewRouter()
	custodyhandler.NewHandler(service, logger).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = service.Close()
	})
	return srv
}

func newLoggedInClient(t *testing.T, srv *httptest.Server, username, password string) *CustodyClient {
	t.Helper()
	client, err := NewCustodyClient(srv.URL + "/")
	require.NoError(t, err)

	_, err = client.Login(context.Background(), username, password)
	require.NoError(t, err)
	return client
}

func TestCustodyClient_RoundTrip(t *testing.T) {
	srv := newTestServer(t, 50*time.Millisecond)
	ctx := context.Background()
	client := newLoggedInClient(t, srv, "user1", "123456")

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user1", me.Username)
	assert.False(t, me.HasKey)

	key, err := client.GenerateKey(ctx)
	require.NoError(t, err)

	// subscribe while signing is still in progress
	ticket, err := client.Sign(ctx, "hello")
	require.NoError(t, err)
	event, err := client.WaitForEvent(ctx, ticket.ID)
	require.NoError(t, err)
	assert.True(t, event.Succeeded())
	assert.Equal(t, ticket.ID, event.Ticket)

	signed, err := client.Retrieve(ctx)
	require.NoError(t, err)
	address, err := cryptoutils.RecoverAddress([]byte("hello"), signed.Signature)
	require.NoError(t, err)
	assert.Equal(t, key.Address, address.Hex())

	_, err = client.Retrieve(ctx)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestCustodyClient_SignAndWait(t *testing.T) {
	srv := newTestServer(t, 0)
	ctx := context.Background()
	client := newLoggedInClient(t, srv, "user2", "Alex5")

	key, err := client.GenerateKey(ctx)
	require.NoError(t, err)

	for _, message := range []string{"one", "two", "three"} {
		signature, err := client.SignAndWait(ctx, message)
		require.NoError(t, err)

		address, err := cryptoutils.RecoverAddress([]byte(message), signature)
		require.NoError(t, err)
		assert.Equal(t, key.Address, address.Hex())
	}
}

func TestCustodyClient_Errors(t *testing.T) {
	srv := newTestServer(t, 0)
	ctx := context.Background()

	client, err := NewCustodyClient(srv.URL)
	require.NoError(t, err)

	_, err = client.Login(ctx, "user1", "wrong")
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Contains(t, statusErr.Message, "wrong password")

	_, err = client.Me(ctx)
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)

	client = newLoggedInClient(t, srv, "user1", "123456")
	_, err = client.SignAndWait(ctx, "hello")
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = client.WaitForEvent(ctx, "no-such-ticket")
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	require.NoError(t, client.Logout(ctx))
	_, err = client.Me(ctx)
	assert.Error(t, err)
}

func TestCustodyClient_DiscardKey(t *testing.T) {
	srv := newTestServer(t, 0)
	ctx := context.Background()
	client := newLoggedInClient(t, srv, "user1", "123456")

	_, err := client.GenerateKey(ctx)
	require.NoError(t, err)
	require.NoError(t, client.DiscardKey(ctx))

	me, err := client.Me(ctx)
	require.NoError(t, err)
	assert.False(t, me.HasKey)
}

func TestCustodyClient_WaitForEventHonoursContext(t *testing.T) {
	srv := newTestServer(t, time.Second)
	client := newLoggedInClient(t, srv, "user1", "123456")

	_, err := client.GenerateKey(context.Background())
	require.NoError(t, err)
	ticket, err := client.Sign(context.Background(), "slow")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = client.WaitForEvent(ctx, ticket.ID)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestReadEvent(t *testing.T) {
	event, err := readEvent(strings.NewReader(": comment\nid: t1\ndata: {\"user_id\":1,\"ticket\":\"t1\",\"error\":\"Key not found!\"}\n\n"))
	require.NoError(t, err)
	assert.Equal(t, "Key not found!", event.Error)
	assert.False(t, event.Succeeded())

	_, err = readEvent(strings.NewReader("id: t1\n\n"))
	assert.ErrorIs(t, err, ErrStreamEnded)

	_, err = readEvent(strings.NewReader("data: nope\n\n"))
	assert.Error(t, err)
}
