package vsshandler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/feldman-vss-backend/api"
	"github.com/ruteri/feldman-vss-backend/cryptoutils"
	"github.com/ruteri/feldman-vss-backend/interfaces"
	"github.com/ruteri/feldman-vss-backend/roster"
	"github.com/ruteri/feldman-vss-backend/session"
	"github.com/ruteri/feldman-vss-backend/storage"
	"github.com/ruteri/feldman-vss-backend/vss"
)

var testParams = vss.Parameters{P: big.NewInt(607), Q: big.NewInt(101), G: big.NewInt(122)}

type testService struct {
	server  *httptest.Server
	manager *session.Manager
	keys    map[interfaces.PlayerID][]byte
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	keys := make(map[interfaces.PlayerID][]byte)
	players := make([]roster.Player, 0, 5)
	for _, name := range []string{"dealer", "alice", "bob", "carol", "dave"} {
		privPEM, pubPEM, err := cryptoutils.GenerateKeyPair()
		require.NoError(t, err)
		id := interfaces.PlayerID(name)
		keys[id] = privPEM
		players = append(players, roster.Player{ID: id, PublicKeyPEM: pubPEM})
	}

	r, err := roster.New(players)
	require.NoError(t, err)

	backend, err := storage.NewFileBackend(t.TempDir(), logger)
	require.NoError(t, err)

	manager := session.NewManager(logger, r, deterministicRand(t))
	handler := NewHandler(manager, backend, logger)
	_, err = handler.WithInboxKey(keys["alice"])
	require.NoError(t, err)

	mux := chi.NewRouter()
	handler.RegisterRoutes(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &testService{server: server, manager: manager, keys: keys}
}

func deterministicRand(t *testing.T) io.Reader {
	t.Helper()
	return vss.NewDeterministicReader([]byte(t.Name()))
}

func (ts *testService) client(t *testing.T, id interfaces.PlayerID) *Client {
	t.Helper()
	client, err := NewClient(ts.server.URL, id, ts.keys[id])
	require.NoError(t, err)
	return client
}

func (ts *testService) createSession(t *testing.T, secret int64) *api.CreateSessionResponse {
	t.Helper()
	params := testParams
	response, err := ts.client(t, "dealer").CreateSession(api.CreateSessionRequest{
		TotalShares: 5,
		Threshold:   3,
		Secret:      (*hexutil.Big)(big.NewInt(secret)),
		Parameters:  &params,
	})
	require.NoError(t, err)
	return response
}

func TestHandler_SessionLifecycle(t *testing.T) {
	ts := newTestService(t)

	created := ts.createSession(t, 42)
	assert.Equal(t, 5, created.Bulletin.TotalShares)
	assert.Equal(t, 3, created.Bulletin.Threshold)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, created.Bulletin.IssuedIndices)
	assert.NotEmpty(t, created.BulletinContentID, "bulletin should be persisted")

	// Three players fetch, open, and submit their shares.
	for _, name := range []interfaces.PlayerID{"alice", "bob", "carol"} {
		client := ts.client(t, name)
		share, err := client.FetchAndDecryptShare(created.SessionID, ts.keys[name])
		require.NoError(t, err)

		fingerprint := created.Bulletin.ParametersFingerprint
		result, err := client.SubmitShare(created.SessionID, api.SubmitShareRequest{
			Share:                 share,
			ParametersFingerprint: fingerprint,
		})
		require.NoError(t, err)
		assert.True(t, result.Accepted, "honest share from %s should be accepted", name)
	}

	secret, err := ts.client(t, "dealer").GetSecret(created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), secret.Secret.ToInt().Int64(), "threshold submissions should reconstruct the secret")
}

func TestHandler_RejectsBadSignature(t *testing.T) {
	ts := newTestService(t)

	// alice signs but claims to be bob
	client := ts.client(t, "alice")
	client.PlayerID = "bob"

	_, err := client.Status()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestHandler_RejectsUnknownPlayer(t *testing.T) {
	ts := newTestService(t)

	privPEM, _, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	client, err := NewClient(ts.server.URL, "mallory", privPEM)
	require.NoError(t, err)

	_, err = client.Status()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestHandler_ShareIsSealedPerPlayer(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	// bob can fetch his own ciphertext but cannot open it with another key.
	response, err := ts.client(t, "bob").GetShare(created.SessionID)
	require.NoError(t, err)
	assert.NotEmpty(t, response.EncryptedShare)

	ciphertext, err := base64.StdEncoding.DecodeString(response.EncryptedShare)
	require.NoError(t, err)
	_, err = cryptoutils.DecryptWithPrivateKey(ts.keys["alice"], ciphertext)
	assert.Error(t, err, "a share sealed to bob must not open with alice's key")
}

func TestHandler_IssuedSharesIsDealerOnly(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	issued, err := ts.client(t, "dealer").IssuedShares(created.SessionID)
	require.NoError(t, err)
	require.Len(t, issued.Shares, 5)
	for i, share := range issued.Shares {
		assert.Equal(t, i+1, share.ShareIndex, "listing should be in issue order")
		assert.NotEmpty(t, share.EncryptedShare)
	}

	// alice's share opens with alice's key, so the listing carries the same
	// ciphertexts the players fetch.
	ciphertext, err := base64.StdEncoding.DecodeString(issued.Shares[1].EncryptedShare)
	require.NoError(t, err)
	_, err = cryptoutils.DecryptWithPrivateKey(ts.keys[issued.Shares[1].PlayerID], ciphertext)
	assert.NoError(t, err)

	_, err = ts.client(t, "bob").IssuedShares(created.SessionID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403", "non-dealers must not list issued shares")
}

func TestHandler_TamperedShareRejectedAsData(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	client := ts.client(t, "alice")
	share, err := client.FetchAndDecryptShare(created.SessionID, ts.keys["alice"])
	require.NoError(t, err)

	share.Value = new(big.Int).Mod(new(big.Int).Add(share.Value, big.NewInt(1)), testParams.Q)

	result, err := client.SubmitShare(created.SessionID, api.SubmitShareRequest{Share: share})
	require.NoError(t, err, "verification failure is a 200, not an error status")
	assert.False(t, result.Accepted)
	assert.Equal(t, 0, result.Collected)
}

func TestHandler_FingerprintMismatch(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	client := ts.client(t, "alice")
	share, err := client.FetchAndDecryptShare(created.SessionID, ts.keys["alice"])
	require.NoError(t, err)

	_, err = client.SubmitShare(created.SessionID, api.SubmitShareRequest{
		Share:                 share,
		ParametersFingerprint: hexutil.Bytes{0xde, 0xad, 0xbe, 0xef},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestHandler_SecretIsDealerOnly(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	_, err := ts.client(t, "alice").GetSecret(created.SessionID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestHandler_RetireWipesSession(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	_, err := ts.client(t, "bob").Retire(created.SessionID)
	require.Error(t, err, "retire is dealer-only")

	response, err := ts.client(t, "dealer").Retire(created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StateRetired.String(), response.State)

	_, err = ts.client(t, "alice").GetShare(created.SessionID)
	require.Error(t, err, "a retired session answers no share requests")
}

func TestHandler_Status(t *testing.T) {
	ts := newTestService(t)
	ts.createSession(t, 7)
	ts.createSession(t, 9)

	status, err := ts.client(t, "dealer").Status()
	require.NoError(t, err)
	assert.Len(t, status.Sessions, 2)
	for _, sess := range status.Sessions {
		assert.Equal(t, interfaces.StateSharesIssued.String(), sess.State)
	}
}

func TestHandler_UnknownSession(t *testing.T) {
	ts := newTestService(t)

	_, err := ts.client(t, "alice").GetShare(interfaces.NewSessionID())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHandler_InboxShare(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	// The dealer re-fetches alice's sealed share and pushes it to the inbox,
	// which is configured with alice's key.
	shareResp, err := ts.client(t, "alice").GetShare(created.SessionID)
	require.NoError(t, err)

	response, err := PushShare(nil, ts.server.URL, api.InboxShareRequest{
		SessionID:      created.SessionID,
		Bulletin:       created.Bulletin,
		EncryptedShare: shareResp.EncryptedShare,
	})
	require.NoError(t, err)
	assert.True(t, response.Accepted)
	assert.Equal(t, shareResp.ShareIndex, response.ShareIndex)
	assert.NotEmpty(t, response.ShareContentID, "accepted shares should be persisted")
}

func TestHandler_InboxRejectsBulletinWithoutParameters(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	shareResp, err := ts.client(t, "alice").GetShare(created.SessionID)
	require.NoError(t, err)

	// A hand-crafted push whose bulletin omits the parameters field entirely.
	// The share still decrypts, but nothing can vouch for it.
	bulletinJSON, err := json.Marshal(created.Bulletin)
	require.NoError(t, err)
	var bulletin map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(bulletinJSON, &bulletin))
	delete(bulletin, "parameters")

	body, err := json.Marshal(map[string]any{
		"session_id":      created.SessionID,
		"bulletin":        bulletin,
		"encrypted_share": shareResp.EncryptedShare,
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.server.URL+"/api/inbox/share", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode, "an unverifiable share is a protocol outcome, not a server error")

	var response api.InboxShareResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	assert.False(t, response.Accepted, "a bulletin without parameters cannot vouch for a share")
	assert.Empty(t, response.ShareContentID, "unverified shares must not be persisted")
}

func TestHandler_InboxRejectsForeignCiphertext(t *testing.T) {
	ts := newTestService(t)
	created := ts.createSession(t, 42)

	// bob's share is sealed to bob, the inbox key belongs to alice.
	shareResp, err := ts.client(t, "bob").GetShare(created.SessionID)
	require.NoError(t, err)

	_, err = PushShare(nil, ts.server.URL, api.InboxShareRequest{
		SessionID:      created.SessionID,
		Bulletin:       created.Bulletin,
		EncryptedShare: shareResp.EncryptedShare,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestHandler_RequiresAuthHeaders(t *testing.T) {
	ts := newTestService(t)

	resp, err := http.Get(ts.server.URL + "/api/admin/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
