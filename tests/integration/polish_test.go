//go:build integration

package integration

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell-notes/inkwell/internal/polish"
)

func TestPolish_API_Success(t *testing.T) {
	env := SetupTestEnv(t)

	email := fmt.Sprintf("polish-%d@test.com", uniqueID())
	RegisterUser(t, env, email, "password123")
	token := LoginUser(t, env, email, "password123")

	body := map[string]string{"content": "teh quick brown fox", "style": "concise"}
	resp := DoRequest(t, env, "POST", "/api/v1/ai/polish", body, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	assert.Equal(t, "polished text", data["text"])
	assert.Equal(t, "free", data["fund"])

	quota := data["quota"].(map[string]any)
	assert.Equal(t, float64(1), quota["free_used_today"])
	assert.Equal(t, float64(30), quota["cumulative_tokens"])
}

func TestPolish_API_QuotaExhaustion(t *testing.T) {
	env := SetupTestEnv(t)

	token := GuestToken(t, env)

	body := map[string]string{"content": "some draft", "style": "formal"}
	for i := 0; i < polish.FreeDailyLimit; i++ {
		resp := DoRequest(t, env, "POST", "/api/v1/ai/polish", body, token)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d should be free", i+1)
		resp.Body.Close()
	}

	// Sixth request the same day: no free allowance, no balance
	resp := DoRequest(t, env, "POST", "/api/v1/ai/polish", body, token)
	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Equal(t, "payment_required", result["error"])

	// Top up one credit, request goes through on the paid path
	resp = DoRequest(t, env, "POST", "/api/v1/billing/topup", map[string]int{"credits": 1}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "POST", "/api/v1/ai/polish", body, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result = ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	assert.Equal(t, "paid", data["fund"])
	quota := data["quota"].(map[string]any)
	assert.Equal(t, float64(0), quota["balance"])
}

func TestPolish_API_UpstreamFailureDoesNotDebit(t *testing.T) {
	env := SetupTestEnv(t)
	env.SetUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "overloaded"}`))
	})

	token := GuestToken(t, env)

	body := map[string]string{"content": "some draft", "style": "academic"}
	resp := DoRequest(t, env, "POST", "/api/v1/ai/polish", body, token)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/ai/quota", nil, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	assert.Equal(t, float64(0), data["free_used_today"])
}

func TestPolish_API_UnrecognizedResponseShape(t *testing.T) {
	env := SetupTestEnv(t)
	env.SetUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"completion": "text in a shape we do not know"}`))
	})

	token := GuestToken(t, env)

	body := map[string]string{"content": "some draft", "style": "concise"}
	resp := DoRequest(t, env, "POST", "/api/v1/ai/polish", body, token)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	result := ParseResponse(t, resp)
	assert.Contains(t, result["error"], "completion")
}

func TestPolish_API_InvalidStyle(t *testing.T) {
	env := SetupTestEnv(t)
	token := GuestToken(t, env)

	body := map[string]string{"content": "some draft", "style": "pirate"}
	resp := DoRequest(t, env, "POST", "/api/v1/ai/polish", body, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPolish_API_Unauthenticated(t *testing.T) {
	env := SetupTestEnv(t)

	resp := DoRequest(t, env, "POST", "/api/v1/ai/polish", map[string]string{"content": "x", "style": "concise"}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = DoRequest(t, env, "GET", "/api/v1/ai/quota", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestPolishRepository_SettleConcurrencyGuard(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	userID := createBareUser(t, env)
	today := "2026-08-31"

	ledger, err := env.PolishStore.GetOrCreate(ctx, userID, today)
	require.NoError(t, err)

	// First settlement against the read snapshot succeeds
	updated, crossed, err := env.PolishStore.Settle(ctx, ledger, polish.FundFree, polish.Usage{InputTokens: 5, OutputTokens: 7})
	require.NoError(t, err)
	assert.False(t, crossed)
	assert.Equal(t, 1, updated.FreeUsedToday)
	assert.Equal(t, int64(12), updated.CumulativeTokens)

	// Second settlement against the same stale snapshot must not double-debit
	_, _, err = env.PolishStore.Settle(ctx, ledger, polish.FundFree, polish.Usage{InputTokens: 5, OutputTokens: 7})
	assert.ErrorIs(t, err, polish.ErrStaleLedger)

	final, err := env.PolishStore.GetOrCreate(ctx, userID, today)
	require.NoError(t, err)
	assert.Equal(t, 1, final.FreeUsedToday)
	assert.Equal(t, int64(12), final.CumulativeTokens)
}

func TestPolishRepository_DailyReset(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	userID := createBareUser(t, env)

	ledger, err := env.PolishStore.GetOrCreate(ctx, userID, "2026-08-30")
	require.NoError(t, err)
	_, _, err = env.PolishStore.Settle(ctx, ledger, polish.FundFree, polish.Usage{InputTokens: 1, OutputTokens: 1})
	require.NoError(t, err)

	// Next day: free counter resets, tokens and balance survive
	reset, err := env.PolishStore.ResetIfStale(ctx, userID, "2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, 0, reset.FreeUsedToday)
	assert.Equal(t, "2026-08-31", reset.LastResetDate)
	assert.Equal(t, int64(2), reset.CumulativeTokens)
}

func TestPolishRepository_AlertFlagSetOnce(t *testing.T) {
	env := SetupTestEnv(t)
	ctx := context.Background()

	userID := createBareUser(t, env)
	today := "2026-08-31"

	ledger, err := env.PolishStore.GetOrCreate(ctx, userID, today)
	require.NoError(t, err)

	big := polish.Usage{InputTokens: polish.TokenAlertThreshold + 1, OutputTokens: 0}
	updated, crossed, err := env.PolishStore.Settle(ctx, ledger, polish.FundFree, big)
	require.NoError(t, err)
	assert.True(t, crossed)
	assert.True(t, updated.AlertSent)

	// Further settlements stay above the threshold but never report a crossing
	updated2, crossed2, err := env.PolishStore.Settle(ctx, updated, polish.FundFree, polish.Usage{InputTokens: 1})
	require.NoError(t, err)
	assert.False(t, crossed2)
	assert.True(t, updated2.AlertSent)
}

func createBareUser(t *testing.T, env *TestEnv) uuid.UUID {
	t.Helper()
	user, err := env.UserSvc.CreateGuest(context.Background())
	require.NoError(t, err)
	return user.ID
}
