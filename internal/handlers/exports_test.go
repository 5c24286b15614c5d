package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/palchat/backend/internal/export"
	"github.com/palchat/backend/internal/models"
	"github.com/palchat/backend/internal/repositories"
)

type exporterStub struct {
	err   error
	owner string
	peer  string
}

func (e *exporterStub) Enqueue(_ context.Context, owner, peer string) (models.Export, error) {
	e.owner, e.peer = owner, peer
	if e.err != nil {
		return models.Export{}, e.err
	}
	return models.Export{ID: uuid.NewString(), Owner: owner, Peer: peer, Status: models.ExportStatusPending, CreatedAt: time.Now().UTC()}, nil
}

type exportStoreStub map[string]models.Export

func (s exportStoreStub) Find(_ context.Context, id string) (models.Export, error) {
	e, ok := s[id]
	if !ok {
		return models.Export{}, repositories.ErrNotFound
	}
	return e, nil
}

func TestExportHandlerCreate(t *testing.T) {
	exporter := &exporterStub{}
	handler := ExportHandler{Friends: acceptedFriends(t, "alice", "bob"), Exporter: exporter}

	rec := httptest.NewRecorder()
	handler.Create(rec, withIdentity(postJSON(t, "/api/v1/exports", exportRequest{Peer: "bob"}), "alice"))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rec.Code, rec.Body)
	}
	var resp exportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != models.ExportStatusPending || resp.Peer != "bob" || exporter.owner != "alice" {
		t.Fatalf("unexpected export %+v", resp)
	}

	rec = httptest.NewRecorder()
	handler.Create(rec, withIdentity(postJSON(t, "/api/v1/exports", exportRequest{Peer: "carol"}), "alice"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected non-friend export to be forbidden, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Create(rec, withIdentity(postJSON(t, "/api/v1/exports", exportRequest{}), "alice"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected missing peer to fail, got %d", rec.Code)
	}
}

func TestExportHandlerCreateUnavailable(t *testing.T) {
	friends := acceptedFriends(t, "alice", "bob")

	rec := httptest.NewRecorder()
	ExportHandler{Friends: friends}.Create(rec, withIdentity(postJSON(t, "/api/v1/exports", exportRequest{Peer: "bob"}), "alice"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without exporter, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ExportHandler{Friends: friends, Exporter: &exporterStub{err: export.ErrStorageUnavailable}}.
		Create(rec, withIdentity(postJSON(t, "/api/v1/exports", exportRequest{Peer: "bob"}), "alice"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without storage, got %d", rec.Code)
	}
}

func TestExportHandlerGet(t *testing.T) {
	id := uuid.NewString()
	handler := ExportHandler{Exports: exportStoreStub{
		id: {ID: id, Owner: "alice", Peer: "bob", Status: models.ExportStatusReady, Location: "https://files.example.com/x.txt", Size: 42},
	}}

	get := func(caller, exportID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/"+exportID, nil)
		req.SetPathValue("exportID", exportID)
		rec := httptest.NewRecorder()
		handler.Get(rec, withIdentity(req, caller))
		return rec
	}

	rec := get("alice", id)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var resp exportResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Location == "" || resp.Size != 42 {
		t.Fatalf("unexpected export %+v", resp)
	}

	for _, tc := range []struct{ caller, id string }{
		{"bob", id},
		{"alice", uuid.NewString()},
		{"alice", "not-a-uuid"},
	} {
		if rec := get(tc.caller, tc.id); rec.Code != http.StatusNotFound {
			t.Fatalf("%s/%s: expected 404 got %d", tc.caller, tc.id, rec.Code)
		}
	}
}
