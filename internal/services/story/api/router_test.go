package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/inkhaven/inkhaven/internal/services/story/app"
	"github.com/inkhaven/inkhaven/internal/services/story/notify"
	"github.com/inkhaven/inkhaven/internal/services/story/storage/sqlite"
)

const testSecret = "router-test-secret"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := zerolog.Nop()
	svc := app.New(store, app.Options{Logger: logger})
	srv := httptest.NewServer(NewRouter(svc, notify.NewHub(logger), testSecret, logger))
	t.Cleanup(srv.Close)
	return srv
}

func mintToken(t *testing.T, userID string, gmCampaigns []string) string {
	t.Helper()
	token, err := NewToken(testSecret, userID, gmCampaigns, time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, method, url, token string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode, decoded
}

func TestRouter_RejectsMissingAndBadTokens(t *testing.T) {
	srv := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, srv.URL+"/v1/campaigns", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d, want %d", status, http.StatusUnauthorized)
	}
	if errBody, ok := body["error"].(map[string]any); !ok || errBody["code"] != "UNAUTHENTICATED" {
		t.Fatalf("missing token body = %v", body)
	}

	status, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/campaigns", "not-a-jwt", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want %d", status, http.StatusUnauthorized)
	}

	// healthz stays open.
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRouter_CampaignFlow(t *testing.T) {
	srv := newTestServer(t)
	player := mintToken(t, "alice", nil)

	status, body := doJSON(t, http.MethodPost, srv.URL+"/v1/campaigns", player,
		map[string]any{"name": "Shattered Vale"})
	if status != http.StatusCreated {
		t.Fatalf("create campaign status = %d, body %v", status, body)
	}
	campaignID, _ := body["id"].(string)
	if campaignID == "" {
		t.Fatalf("create campaign returned no id: %v", body)
	}
	if body["phase"] != "resolve" {
		t.Fatalf("new campaign phase = %v, want resolve", body["phase"])
	}

	gm := mintToken(t, "alice", []string{campaignID})
	base := srv.URL + "/v1/campaigns/" + campaignID

	// A token without the gm claim cannot run privileged operations.
	status, body = doJSON(t, http.MethodPost, base+"/pause", player, nil)
	if status != http.StatusForbidden {
		t.Fatalf("unprivileged pause status = %d, body %v", status, body)
	}

	status, body = doJSON(t, http.MethodPost, base+"/scenes", gm, map[string]any{"name": "Gatehouse"})
	if status != http.StatusCreated {
		t.Fatalf("create scene status = %d, body %v", status, body)
	}
	scene, _ := body["scene"].(map[string]any)
	sceneID, _ := scene["id"].(string)
	if sceneID == "" {
		t.Fatalf("create scene returned no id: %v", body)
	}

	status, body = doJSON(t, http.MethodPost, base+"/characters", gm,
		map[string]any{"name": "Wren", "kind": "primary", "controller_user_id": "bob"})
	if status != http.StatusCreated {
		t.Fatalf("create character status = %d, body %v", status, body)
	}
	characterID, _ := body["id"].(string)

	status, _ = doJSON(t, http.MethodPut, base+"/scenes/"+sceneID+"/occupants/"+characterID, gm, nil)
	if status != http.StatusNoContent {
		t.Fatalf("add occupant status = %d", status)
	}

	status, body = doJSON(t, http.MethodPost, base+"/phase/write", gm, nil)
	if status != http.StatusOK {
		t.Fatalf("begin write status = %d, body %v", status, body)
	}
	if body["phase"] != "write" {
		t.Fatalf("phase after begin write = %v", body["phase"])
	}

	bob := mintToken(t, "bob", nil)
	status, body = doJSON(t, http.MethodPost, base+"/scenes/"+sceneID+"/locks", bob,
		map[string]any{"character_id": characterID})
	if status != http.StatusCreated {
		t.Fatalf("acquire lock status = %d, body %v", status, body)
	}

	status, body = doJSON(t, http.MethodPost, base+"/scenes/"+sceneID+"/posts", bob,
		map[string]any{"author_character_id": characterID, "body": "Wren slips through the gate."})
	if status != http.StatusCreated {
		t.Fatalf("create post status = %d, body %v", status, body)
	}
	if body["locked"] != false {
		t.Fatalf("fresh post locked = %v, want false", body["locked"])
	}

	status, body = doJSON(t, http.MethodGet, srv.URL+"/v1/campaigns/missing-id", player, nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing campaign status = %d, body %v", status, body)
	}
}
