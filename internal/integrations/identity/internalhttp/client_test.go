package internalhttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/KickSync/internal/integrations/identity"
	jwt "github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func permissionsOf(t *testing.T, authz string) []any {
	t.Helper()
	require.True(t, strings.HasPrefix(authz, "Bearer "))
	tok, err := jwt.Parse(strings.TrimPrefix(authz, "Bearer "), func(*jwt.Token) (any, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	require.True(t, tok.Valid)
	claims := tok.Claims.(jwt.MapClaims)
	return claims["permissions"].([]any)
}

func TestClient_SearchFranchises_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/franchises", r.URL.Path)
		require.Equal(t, "1", r.URL.Query().Get("take"))
		require.Equal(t, "미지정", r.URL.Query().Get("search"))
		require.Equal(t, []any{string(identity.PermissionFranchiseList)}, permissionsOf(t, r.Header.Get("Authorization")))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"opcode":0,"franchises":[{"franchiseId":"F1","name":"미지정"}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1/", srv.URL, NewTokenSource(testSecret, "kickboard-sync", "internal", time.Minute))
	got, err := c.SearchFranchises(context.Background(), 1, "미지정")
	require.NoError(t, err)
	require.Equal(t, []identity.Franchise{{FranchiseID: "F1", Name: "미지정"}}, got)
}

func TestClient_SearchRegions_EmptyAndScoped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/regions", r.URL.Path)
		require.Equal(t, []any{string(identity.PermissionRegionList)}, permissionsOf(t, r.Header.Get("Authorization")))
		_, _ = w.Write([]byte(`{"opcode":0,"regions":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, NewTokenSource(testSecret, "", "", 0))
	got, err := c.SearchRegions(context.Background(), 1, "미운영")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"opcode":403}`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, NewTokenSource(testSecret, "", "", 0))
	_, err := c.SearchRegions(context.Background(), 1, "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "search regions")
	require.Contains(t, err.Error(), "403")
}

func TestClient_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, srv.URL, NewTokenSource(testSecret, "", "", 0))
	_, err := c.SearchFranchises(context.Background(), 1, "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestTokenSource_EmptySecret(t *testing.T) {
	_, err := NewTokenSource("", "", "", 0).Token(identity.PermissionRegionList)
	require.Error(t, err)
}

func TestTokenSource_Claims(t *testing.T) {
	ts := NewTokenSource(testSecret, "iss", "aud", time.Minute)
	fixed := time.Now().UTC().Truncate(time.Second)
	ts.now = func() time.Time { return fixed }

	signed, err := ts.Token(identity.PermissionRegionList, identity.PermissionFranchiseList)
	require.NoError(t, err)

	tok, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return []byte(testSecret), nil })
	require.NoError(t, err)
	claims := tok.Claims.(jwt.MapClaims)
	require.Equal(t, "iss", claims["iss"])
	require.Equal(t, "aud", claims["aud"])
	require.Equal(t, float64(fixed.Add(time.Minute).Unix()), claims["exp"])
	require.Equal(t, []any{"franchises.list", "locations.regions.list"}, claims["permissions"])
}
