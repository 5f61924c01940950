package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmarket/storefront/internal/fakebackend"
)

func setup(t *testing.T) *httptest.Server {
	t.Helper()
	srv := fakebackend.New(
		fakebackend.WithBcryptCost(bcrypt.MinCost),
		fakebackend.WithStatusSource(fakebackend.CompleteOnCheck(2)),
	)
	srv.AddProduct(fakebackend.Product{ID: "P1", Name: "Desk lamp", Price: 500, Stock: 5})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	fakebackend.WithPublicURL(ts.URL)(srv)

	t.Setenv("API_BASE_URL", ts.URL+"/api")
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_DIR", t.TempDir())
	t.Setenv("PAYMENT_POLL_INTERVAL", "1ms")
	t.Setenv("PAYMENT_SUCCESS_DELAY", "0s")
	t.Setenv("LOG_LEVEL", "error")
	return ts
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, cleanup := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	cleanup(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	require.NoError(t, err, out)
	return out
}

var (
	orderIDPattern = regexp.MustCompile(`Order (\S+) placed`)
	txRefPattern   = regexp.MustCompile(`tx_ref=([^'\s]+)`)
)

func checkout(t *testing.T) string {
	t.Helper()
	out := mustRun(t, "checkout", "--street", "1 Hall Rd", "--city", "Nairobi", "--state", "Nairobi", "--zip", "00100")
	m := orderIDPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	assert.Contains(t, out, "KES 500.00")
	return m[1]
}

func TestShopAndPayWithMpesa(t *testing.T) {
	setup(t)

	out := mustRun(t, "register", "--name", "Amina", "--email", "amina@campus.test", "--password", "secret1")
	assert.Contains(t, out, "Welcome, Amina")
	assert.Contains(t, mustRun(t, "whoami"), "amina@campus.test")

	out = mustRun(t, "cart", "add", "P1")
	assert.Contains(t, out, "Added Desk lamp")
	assert.Contains(t, out, "total KES 500.00 (synced)")

	_, err := run(t, "checkout", "--city", "Nairobi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shippingAddress.street")

	orderID := checkout(t)
	assert.Contains(t, mustRun(t, "cart", "show"), "Desk lamp", "checkout keeps the cart")

	_, err = run(t, "pay", "mpesa", orderID, "--phone", "0712345678")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phoneNumber")

	out = mustRun(t, "pay", "mpesa", orderID, "--phone", "254700000000")
	assert.Contains(t, out, "Payment successful")
	assert.Contains(t, out, "receipt: Q")

	assert.Contains(t, mustRun(t, "cart", "show"), "Your cart is empty")
	assert.Contains(t, mustRun(t, "orders", "list"), "paid")
	assert.Contains(t, mustRun(t, "orders", "track", orderID), "pending")

	_, err = run(t, "pay", "mpesa", orderID, "--phone", "254700000000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already paid")

	mustRun(t, "logout")
	assert.Contains(t, mustRun(t, "whoami"), "Not signed in")
}

func TestShopAndPayWithCard(t *testing.T) {
	ts := setup(t)
	mustRun(t, "register", "--name", "Baraka", "--email", "baraka@campus.test", "--password", "secret1")
	mustRun(t, "cart", "add", "P1")
	orderID := checkout(t)

	out := mustRun(t, "pay", "card", orderID)
	assert.Contains(t, out, ts.URL+"/pay/")
	m := txRefPattern.FindStringSubmatch(out)
	require.Len(t, m, 2, out)

	out = mustRun(t, "payment", "verify", "status=successful&tx_ref="+m[1])
	assert.Contains(t, out, "not confirmed")
	assert.Contains(t, mustRun(t, "cart", "show"), "Desk lamp")

	resp, err := http.Get(ts.URL + "/pay/" + m[1])
	require.NoError(t, err)
	resp.Body.Close()

	out = mustRun(t, "payment", "verify", ts.URL+"/payment/success?status=successful&tx_ref="+m[1])
	assert.Contains(t, out, "Payment successful")
	assert.Contains(t, out, orderID)
	assert.Contains(t, mustRun(t, "cart", "show"), "Your cart is empty")

	_, err = run(t, "payment", "verify", "status=failed&error=Card%2520declined")
	require.Error(t, err)
	assert.Equal(t, "Card declined", err.Error())
}

func TestCartWorksSignedOut(t *testing.T) {
	setup(t)
	out := mustRun(t, "cart", "add", "P1")
	assert.Contains(t, out, "(local only)")
	out = mustRun(t, "cart", "qty", "P1", "3")
	assert.Contains(t, out, "KES 1500.00")

	_, err := run(t, "checkout", "--street", "x", "--city", "y", "--state", "z", "--zip", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sign in")

	_, err = run(t, "cart", "sync")
	require.Error(t, err)
}
